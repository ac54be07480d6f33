package guards

import (
	"context"
	"sync"
)

// InMemoryRepository is used when no cache DSN is configured and in tests.
type InMemoryRepository struct {
	mu sync.RWMutex
	m  map[[2]string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{m: make(map[[2]string]string)}
}

func (r *InMemoryRepository) Get(_ context.Context, collection, recordID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[[2]string{collection, recordID}], nil
}

func (r *InMemoryRepository) Put(_ context.Context, collection, recordID, guard string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[[2]string{collection, recordID}] = guard
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, collection, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, [2]string{collection, recordID})
	return nil
}

func (r *InMemoryRepository) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.m)
	return nil
}
