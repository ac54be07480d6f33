package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
)

const defaultPageSize = 100

// fieldModule is a Plugin whose payloads are flat JSON objects identified
// by a fixed list of fields.
type fieldModule struct {
	meta      Meta
	keyFields []string
	required  []string
}

var _ Plugin = (*fieldModule)(nil)

func (m *fieldModule) Meta() Meta { return m.meta }

func (m *fieldModule) scope(pc Context) services.Scope {
	return services.Scope{Collection: m.meta.CollectionName, ModuleUserID: pc.ModuleUserID}
}

func (m *fieldModule) validate(p Plain) error {
	for _, f := range m.required {
		if field(p, f) == "" {
			return fmt.Errorf("%w: %s entry without %q", common.ErrorValidation, m.meta.ID, f)
		}
	}
	return nil
}

func (m *fieldModule) ImportHandler(ctx context.Context, payload Plain, pc Context) (ImportResult, error) {
	if err := m.validate(payload); err != nil {
		return ImportResult{}, err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return ImportResult{}, err
	}

	id, err := pc.Records.CreatePromoted(ctx, m.scope(pc), pc.Key, plaintext)
	if err != nil {
		var pe *services.PromotionError
		if errors.As(err, &pe) {
			return ImportResult{Action: ActionCreated, ID: id}, err
		}
		return ImportResult{}, err
	}
	return ImportResult{Action: ActionCreated, ID: id}, nil
}

func (m *fieldModule) ExportQuery(ctx context.Context, pc Context, pageSize int) iter.Seq2[Plain, error] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return func(yield func(Plain, error) bool) {
		for item, err := range pc.Records.Records(ctx, m.scope(pc), pc.Key, pageSize) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			var p Plain
			if err := json.Unmarshal(item.Plaintext, &p); err != nil || p == nil {
				if err == nil {
					err = errors.New("payload is not an object")
				}
				if !yield(nil, &services.ItemError{RecordID: item.ID, Err: err}) {
					return
				}
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (m *fieldModule) ExportSerialize(p Plain) Item {
	return Item{Module: m.meta.ID, Version: m.meta.Version, Payload: p}
}

func (m *fieldModule) NaturalKey(p Plain) string {
	parts := make([]string, len(m.keyFields))
	for i, f := range m.keyFields {
		parts[i] = field(p, f)
	}
	return CompositeKey(parts...)
}

// ListExistingKeys collects the natural keys of all readable records.
// Unreadable records are skipped; a request failure aborts.
func (m *fieldModule) ListExistingKeys(ctx context.Context, pc Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	for p, err := range m.ExportQuery(ctx, pc, defaultPageSize) {
		if err != nil {
			var ie *services.ItemError
			if errors.As(err, &ie) {
				continue
			}
			return nil, err
		}
		keys[m.NaturalKey(p)] = struct{}{}
	}
	return keys, nil
}
