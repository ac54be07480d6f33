// Package metadata is a small key-value table in the client cache. The CLI
// keeps non-secret bookkeeping there, such as the last backup key.
package metadata

import (
	"context"
)

// Known keys.
const (
	KeyLastBackup = "last_backup_key"
	KeyUsername   = "username"
)

// Repository stores string values by key. Get on an absent key yields
// common.ErrorNotFound.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys; absent ones are ignored.
	Delete(ctx context.Context, keys ...string) error
}
