package plugins

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
)

type storedItem struct {
	id        string
	plaintext []byte
	broken    bool
}

// memStore is a RecordStore keyed by scope.
type memStore struct {
	mu        sync.Mutex
	items     map[services.Scope][]storedItem
	next      int
	createErr error
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{items: map[services.Scope][]storedItem{}}
}

func (m *memStore) CreatePromoted(_ context.Context, scope services.Scope, _ cryptox.RawKey, plaintext []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("r%d", m.next)
	if m.createErr != nil {
		if _, ok := m.createErr.(*services.PromotionError); !ok {
			return "", m.createErr
		}
	}
	m.items[scope] = append(m.items[scope], storedItem{id: id, plaintext: append([]byte(nil), plaintext...)})
	if m.createErr != nil {
		return id, &services.PromotionError{RecordID: id, Err: common.ErrorForbidden}
	}
	return id, nil
}

func (m *memStore) add(scope services.Scope, plaintext string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.items[scope] = append(m.items[scope], storedItem{id: fmt.Sprintf("r%d", m.next), plaintext: []byte(plaintext)})
}

func (m *memStore) addBroken(scope services.Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.items[scope] = append(m.items[scope], storedItem{id: fmt.Sprintf("r%d", m.next), broken: true})
}

func (m *memStore) count(scope services.Scope) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items[scope])
}

func (m *memStore) Records(_ context.Context, scope services.Scope, _ cryptox.RawKey, _ int) iter.Seq2[*services.Item, error] {
	m.mu.Lock()
	snapshot := append([]storedItem(nil), m.items[scope]...)
	listErr := m.listErr
	m.mu.Unlock()

	return func(yield func(*services.Item, error) bool) {
		if listErr != nil {
			yield(nil, listErr)
			return
		}
		for _, it := range snapshot {
			if it.broken {
				if !yield(nil, &services.ItemError{RecordID: it.id, Err: common.ErrorKeyMissing}) {
					return
				}
				continue
			}
			if !yield(&services.Item{ID: it.id, Plaintext: it.plaintext}, nil) {
				return
			}
		}
	}
}
