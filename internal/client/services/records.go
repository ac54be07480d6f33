package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/aliceout/nodea/internal/client/api"
	"github.com/aliceout/nodea/internal/client/repositories/guards"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/wire"
)

// Scope addresses the records of one module of one user.
type Scope struct {
	Collection   string
	ModuleUserID string
}

func (s Scope) validate() error {
	if s.Collection == "" {
		return fmt.Errorf("%w: collection is empty", common.ErrorValidation)
	}
	if s.ModuleUserID == "" {
		return fmt.Errorf("%w: module identifier is empty", common.ErrorValidation)
	}
	return nil
}

// Item is a decrypted record.
type Item struct {
	ID        string
	Plaintext []byte
	Created   time.Time
	Updated   time.Time
}

// ItemError reports one record that could not be opened. Bulk reads yield
// it and carry on with the next record.
type ItemError struct {
	RecordID string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// PromotionError means the record was created but its guard is still the
// placeholder. Anyone who knows the module identifier can modify or delete
// such a record until it is promoted.
type PromotionError struct {
	RecordID string
	Err      error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("record %s created but not promoted: %v", e.RecordID, e.Err)
}

func (e *PromotionError) Unwrap() error { return e.Err }

// Page is one decrypted list page.
type Page struct {
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	Items      []*Item
	Failed     []*ItemError
}

// RecordService drives the record lifecycle against the API:
// create with the "init" placeholder, promote to the derived guard, then
// update and delete with that guard. Network errors are returned as is.
type RecordService struct {
	client api.Client
	guards guards.Repository
	logger logging.Logger
}

func NewRecordService(client api.Client, cache guards.Repository, log logging.Logger) *RecordService {
	if cache == nil {
		cache = guards.NewInMemoryRepository()
	}
	return &RecordService{client: client, guards: cache, logger: log.With("component", "records")}
}

// Create seals plaintext and stores it with the placeholder guard. It
// returns the id assigned by the server.
func (s *RecordService) Create(ctx context.Context, scope Scope, key cryptox.RawKey, plaintext []byte) (string, error) {
	if err := scope.validate(); err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", fmt.Errorf("%w: %w: raw key is required", common.ErrorValidation, common.ErrorKeyMissing)
	}
	sealed, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return "", err
	}

	rec, err := s.client.CreateRecord(ctx, scope.Collection, wire.CreateRecordRequest{
		ModuleUserID: scope.ModuleUserID,
		Payload:      sealed.Ciphertext,
		CipherIV:     sealed.IV,
		Guard:        common.GuardPlaceholder,
	})
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	return rec.ID, nil
}

// Promote replaces the placeholder guard of id with the derived guard,
// authenticating with d="init". It succeeds at most once per record.
func (s *RecordService) Promote(ctx context.Context, scope Scope, id string, key cryptox.RawKey) error {
	if err := scope.validate(); err != nil {
		return err
	}
	guard, err := cryptox.DeriveGuard(key, scope.ModuleUserID, id)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateRecord(ctx, scope.Collection, id, scope.ModuleUserID, common.GuardPlaceholder,
		wire.UpdateRecordRequest{Guard: &guard})
	if err != nil {
		return fmt.Errorf("promote record: %w", err)
	}

	s.remember(ctx, scope, id, guard)
	return nil
}

// CreatePromoted creates a record and promotes it straight away. If the
// promotion fails the id is still returned, with a *PromotionError.
func (s *RecordService) CreatePromoted(ctx context.Context, scope Scope, key cryptox.RawKey, plaintext []byte) (string, error) {
	id, err := s.Create(ctx, scope, key, plaintext)
	if err != nil {
		return "", err
	}
	if err := s.Promote(ctx, scope, id, key); err != nil {
		s.logger.Warn(ctx, "record left with placeholder guard", "collection", scope.Collection, "id", id, "error", err)
		return id, &PromotionError{RecordID: id, Err: err}
	}
	return id, nil
}

// Update replaces the payload of a promoted record.
func (s *RecordService) Update(ctx context.Context, scope Scope, id string, key cryptox.RawKey, plaintext []byte) error {
	if err := scope.validate(); err != nil {
		return err
	}
	guard, err := s.guardFor(ctx, scope, id, key)
	if err != nil {
		return err
	}
	sealed, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateRecord(ctx, scope.Collection, id, scope.ModuleUserID, guard,
		wire.UpdateRecordRequest{Payload: sealed.Ciphertext, CipherIV: sealed.IV})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// Delete removes a record. A forbidden answer is retried once with the
// placeholder guard, which covers records whose promotion never happened.
func (s *RecordService) Delete(ctx context.Context, scope Scope, id string, key cryptox.RawKey) error {
	if err := scope.validate(); err != nil {
		return err
	}
	guard, err := s.guardFor(ctx, scope, id, key)
	if err != nil {
		return err
	}

	err = s.client.DeleteRecord(ctx, scope.Collection, id, scope.ModuleUserID, guard)
	if errors.Is(err, common.ErrorForbidden) {
		s.logger.Debug(ctx, "delete refused, retrying with placeholder guard", "collection", scope.Collection, "id", id)
		err = s.client.DeleteRecord(ctx, scope.Collection, id, scope.ModuleUserID, common.GuardPlaceholder)
	}
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if err := s.guards.Delete(ctx, scope.Collection, id); err != nil {
		s.logger.Warn(ctx, "guard cache eviction failed", "collection", scope.Collection, "id", id, "error", err)
	}
	return nil
}

// Get reads and opens one record.
func (s *RecordService) Get(ctx context.Context, scope Scope, id string, key cryptox.RawKey) (*Item, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.client.GetRecord(ctx, scope.Collection, id, scope.ModuleUserID)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return open(rec, key)
}

// List reads one page. Records that cannot be opened are reported in
// Page.Failed instead of failing the page.
func (s *RecordService) List(ctx context.Context, scope Scope, key cryptox.RawKey, page, perPage int) (*Page, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.client.ListRecords(ctx, scope.Collection, scope.ModuleUserID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := &Page{
		Page:       resp.Page,
		PerPage:    resp.PerPage,
		TotalItems: resp.TotalItems,
		TotalPages: resp.TotalPages,
		Items:      make([]*Item, 0, len(resp.Items)),
	}
	for _, rec := range resp.Items {
		item, err := open(rec, key)
		if err != nil {
			out.Failed = append(out.Failed, &ItemError{RecordID: rec.ID, Err: err})
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// Records walks every record of scope, pageSize at a time. Undecryptable
// records are yielded as *ItemError and iteration continues; a request
// failure is yielded once and ends the sequence. Each call starts again
// from the first page, and stopping early leaves nothing behind since the
// cursor is just a page number.
func (s *RecordService) Records(ctx context.Context, scope Scope, key cryptox.RawKey, pageSize int) iter.Seq2[*Item, error] {
	return func(yield func(*Item, error) bool) {
		for page := 1; ; page++ {
			p, err := s.List(ctx, scope, key, page, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range p.Items {
				if !yield(item, nil) {
					return
				}
			}
			for _, failed := range p.Failed {
				if !yield(nil, failed) {
					return
				}
			}
			if len(p.Items)+len(p.Failed) == 0 || page >= p.TotalPages {
				return
			}
		}
	}
}

// guardFor returns the cached guard of id or derives it again.
func (s *RecordService) guardFor(ctx context.Context, scope Scope, id string, key cryptox.RawKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if g, err := s.guards.Get(ctx, scope.Collection, id); err == nil && g != "" {
		return g, nil
	}
	guard, err := cryptox.DeriveGuard(key, scope.ModuleUserID, id)
	if err != nil {
		return "", err
	}
	s.remember(ctx, scope, id, guard)
	return guard, nil
}

func (s *RecordService) remember(ctx context.Context, scope Scope, id, guard string) {
	if err := s.guards.Put(ctx, scope.Collection, id, guard); err != nil {
		s.logger.Warn(ctx, "guard cache write failed", "collection", scope.Collection, "id", id, "error", err)
	}
}

func open(rec *wire.Record, key cryptox.RawKey) (*Item, error) {
	plaintext, err := cryptox.OpenWithRetry(cryptox.Sealed{IV: rec.CipherIV, Ciphertext: rec.Payload}, key)
	if err != nil {
		return nil, err
	}
	return &Item{ID: rec.ID, Plaintext: plaintext, Created: rec.Created, Updated: rec.Updated}, nil
}
