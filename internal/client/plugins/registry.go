package plugins

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aliceout/nodea/internal/common"
)

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Default returns a registry holding the built-in modules.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []Plugin{Mood(), Goals(), Passage()} {
		_ = r.Register(p)
	}
	return r
}

// Register adds p. Module ids are unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.Meta().ID
	if _, ok := r.plugins[id]; ok {
		return fmt.Errorf("%w: module %q registered twice", common.ErrorValidation, id)
	}
	r.plugins[id] = p
	return nil
}

func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown module %q", common.ErrorNotFound, id)
	}
	return p, nil
}

// IDs returns the registered module ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
