// Package plugins defines the per-module import/export contract and the
// built-in mood, goals and passage modules. Export walks a module's records
// through the record coordinator; import deduplicates on natural keys
// before creating anything.
package plugins

import (
	"context"
	"iter"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/cryptox"
)

// Meta identifies a module and where its records live.
type Meta struct {
	ID             string
	Version        int
	CollectionName string
}

// Plain is a decrypted record payload.
type Plain map[string]any

type Action string

const (
	ActionCreated Action = "created"
	ActionSkipped Action = "skipped"
)

type ImportResult struct {
	Action Action
	ID     string
}

// Item is one exported record.
type Item struct {
	Module  string `json:"module"`
	Version int    `json:"version"`
	Payload Plain  `json:"payload"`
}

// RecordStore is the part of services.RecordService the plugins use.
type RecordStore interface {
	CreatePromoted(ctx context.Context, scope services.Scope, key cryptox.RawKey, plaintext []byte) (string, error)
	Records(ctx context.Context, scope services.Scope, key cryptox.RawKey, pageSize int) iter.Seq2[*services.Item, error]
}

// Context carries what a plugin needs to reach one user's module records.
type Context struct {
	Records      RecordStore
	Key          cryptox.RawKey
	ModuleUserID string
}

type Plugin interface {
	Meta() Meta
	// ImportHandler stores payload as a new, promoted record.
	ImportHandler(ctx context.Context, payload Plain, pc Context) (ImportResult, error)
	// ExportQuery yields every decrypted payload of the module. Records
	// that cannot be read are yielded as *services.ItemError.
	ExportQuery(ctx context.Context, pc Context, pageSize int) iter.Seq2[Plain, error]
	ExportSerialize(p Plain) Item
	NaturalKey(p Plain) string
	// ListExistingKeys returns the natural keys already stored. A nil set
	// means none.
	ListExistingKeys(ctx context.Context, pc Context) (map[string]struct{}, error)
}
