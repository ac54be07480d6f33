package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
)

// InMemoryRepository keeps records in a map. It backs the server when the
// DSN is repomanager.MemoryDSN.
type InMemoryRepository struct {
	mu    sync.Mutex
	items map[string]*models.Record
	seq   map[string]int64
	next  int64
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*models.Record),
		seq:   make(map[string]int64),
		now:   time.Now,
	}
}

func memKey(collection, id string) string { return collection + "/" + id }

func clone(r *models.Record) *models.Record {
	c := *r
	c.Payload = append([]byte(nil), r.Payload...)
	c.CipherIV = append([]byte(nil), r.CipherIV...)
	return &c
}

func (m *InMemoryRepository) Create(_ context.Context, r *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(r.Collection, r.ID)
	if _, ok := m.items[k]; ok {
		return common.ErrVersionConflict
	}
	r.Created = m.now()
	r.Updated = r.Created
	m.items[k] = clone(r)
	m.next++
	m.seq[k] = m.next
	return nil
}

func (m *InMemoryRepository) Get(_ context.Context, collection, id string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.items[memKey(collection, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r), nil
}

func (m *InMemoryRepository) List(_ context.Context, collection, moduleUserID string, limit, offset int) ([]*models.Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k, r := range m.items {
		if r.Collection == collection && r.ModuleUserID == moduleUserID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return m.seq[keys[i]] < m.seq[keys[j]] })

	total := len(keys)
	if offset >= total {
		return []*models.Record{}, total, nil
	}
	end := min(offset+limit, total)

	items := make([]*models.Record, 0, end-offset)
	for _, k := range keys[offset:end] {
		items = append(items, clone(m.items[k]))
	}
	return items, total, nil
}

func (m *InMemoryRepository) Update(_ context.Context, r *models.Record, expectedGuard string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(r.Collection, r.ID)
	cur, ok := m.items[k]
	if !ok || cur.Guard != expectedGuard {
		return common.ErrVersionConflict
	}
	r.Updated = m.now()
	cur.Payload = append([]byte(nil), r.Payload...)
	cur.CipherIV = append([]byte(nil), r.CipherIV...)
	cur.Guard = r.Guard
	cur.Updated = r.Updated
	return nil
}

func (m *InMemoryRepository) Delete(_ context.Context, collection, id, expectedGuard string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(collection, id)
	cur, ok := m.items[k]
	if !ok || cur.Guard != expectedGuard {
		return common.ErrVersionConflict
	}
	delete(m.items, k)
	delete(m.seq, k)
	return nil
}
