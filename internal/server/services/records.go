package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/config"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/aliceout/nodea/internal/server/repositories/repomanager"
	"github.com/aliceout/nodea/internal/server/rules"
	"github.com/google/uuid"
)

const defaultPerPage = 50

// RecordPage is one page of a list query.
type RecordPage struct {
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	Items      []*models.Record
}

// RecordService enforces the access rules of the record collections: the
// declarative predicates of rules.Set and the create/update hooks. Every
// mutation loads the stored row, runs the hook, checks the predicate and
// finally writes conditionally on the guard it checked against.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rules       rules.Set
	collections map[string]struct{}
	maxPageSize int
	log         logging.Logger
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *RecordService {
	collections := make(map[string]struct{}, len(cfg.Collections))
	for _, c := range cfg.Collections {
		collections[c] = struct{}{}
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = defaultPerPage
	}
	return &RecordService{
		db:          db,
		repomanager: m,
		rules:       rules.Default(),
		collections: collections,
		maxPageSize: maxPageSize,
		log:         log.With("service", "records"),
	}
}

func (s *RecordService) checkCollection(collection string) error {
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("%w: collection %q", common.ErrorNotFound, collection)
	}
	return nil
}

// load returns the stored row, reporting a missing row as not found.
func (s *RecordService) load(ctx context.Context, collection, id string) (*models.Record, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).Get(ctx, collection, id)
}

// List returns the records of p.SID. A request without sid is rejected
// outright rather than answered with an empty page.
func (s *RecordService) List(ctx context.Context, collection string, p rules.Params, page, perPage int) (*RecordPage, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	if p.SID == "" {
		return nil, fmt.Errorf("%w: sid is required", common.ErrorValidation)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, s.maxPageSize)

	items, total, err := s.repomanager.Records(s.db).List(ctx, collection, p.SID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	visible := items[:0]
	for _, r := range items {
		if s.rules.Allow(rules.OpList, p, r) {
			visible = append(visible, r)
		}
	}

	return &RecordPage{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      visible,
	}, nil
}

// Get returns one record. A caller whose sid does not own the record gets
// not found, the same answer as for a missing id.
func (s *RecordService) Get(ctx context.Context, collection, id string, p rules.Params) (*models.Record, error) {
	rec, err := s.load(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if !s.rules.Allow(rules.OpView, p, rec) {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

// Create stores a new record with a server-assigned id.
func (s *RecordService) Create(ctx context.Context, collection string, rec *models.Record) (*models.Record, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	rec.Collection = collection
	rec.ID = uuid.NewString()

	if err := rules.BeforeCreate(rec); err != nil {
		return nil, err
	}
	if !s.rules.Allow(rules.OpCreate, rules.Params{SID: rec.ModuleUserID, D: rec.Guard}, rec) {
		return nil, common.ErrorForbidden
	}

	if err := s.repomanager.Records(s.db).Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "record created", "collection", collection, "id", rec.ID)
	return rec, nil
}

// Update applies patch to the record. The stored guard must match p.D, and
// the guard field itself may only move from the placeholder to a promoted
// value once.
func (s *RecordService) Update(ctx context.Context, collection, id string, p rules.Params, patch models.RecordPatch) (*models.Record, error) {
	stored, err := s.loadVisible(ctx, "update", collection, id, p)
	if err != nil {
		return nil, err
	}

	if err := rules.BeforeUpdate(stored, patch); err != nil {
		s.denied(ctx, "update", collection, id, err)
		return nil, err
	}
	if !s.rules.Allow(rules.OpUpdate, p, stored) {
		s.denied(ctx, "update", collection, id, common.ErrorForbidden)
		return nil, common.ErrorForbidden
	}

	expected := stored.Guard
	updated := *stored
	patch.Apply(&updated)

	if err := s.repomanager.Records(s.db).Update(ctx, &updated, expected); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.denied(ctx, "update", collection, id, err)
			return nil, common.ErrorForbidden
		}
		return nil, err
	}

	if patch.HasGuard() && rules.IsPlaceholder(expected) {
		s.log.Debug(ctx, "record promoted", "collection", collection, "id", id)
	}
	return &updated, nil
}

// Delete removes the record when both sid and guard match.
func (s *RecordService) Delete(ctx context.Context, collection, id string, p rules.Params) error {
	stored, err := s.loadVisible(ctx, "delete", collection, id, p)
	if err != nil {
		return err
	}
	if !s.rules.Allow(rules.OpDelete, p, stored) {
		s.denied(ctx, "delete", collection, id, common.ErrorForbidden)
		return common.ErrorForbidden
	}

	if err := s.repomanager.Records(s.db).Delete(ctx, collection, id, stored.Guard); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.denied(ctx, "delete", collection, id, err)
			return common.ErrorForbidden
		}
		return err
	}
	s.log.Debug(ctx, "record deleted", "collection", collection, "id", id)
	return nil
}

// loadVisible loads a record for a write. A record the caller's sid cannot
// see is reported as not found, before any other check runs.
func (s *RecordService) loadVisible(ctx context.Context, op, collection, id string, p rules.Params) (*models.Record, error) {
	stored, err := s.load(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if !s.rules.Allow(rules.OpView, p, stored) {
		s.denied(ctx, op, collection, id, common.ErrorNotFound)
		return nil, common.ErrorNotFound
	}
	return stored, nil
}

func (s *RecordService) denied(ctx context.Context, op, collection, id string, reason error) {
	s.log.Info(ctx, "record access denied", "op", op, "collection", collection, "id", id, "reason", reason.Error())
}
