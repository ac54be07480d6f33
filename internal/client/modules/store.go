// Package modules keeps the per-user module configuration: which modules
// are enabled and the pseudonymous identifier (sid) that scopes each
// module's records. The whole map is stored as one sealed user field.
package modules

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/wire"
)

// AlgoVersion is written into new entries.
const AlgoVersion = 1

const sidPrefix = "m_"

// Entry is the configuration of one module.
type Entry struct {
	Enabled      bool   `json:"enabled"`
	ModuleUserID string `json:"module_user_id"`
	// GuardSeed is random per module and reserved for future guard
	// algorithms; version 1 derives guards from the raw key alone.
	GuardSeed   string `json:"guard_seed,omitempty"`
	AlgoVersion int    `json:"algo_version"`
}

// Config maps module ids ("mood", "goals", ...) to their entries.
type Config map[string]Entry

func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

// Snapshot is the result of Load.
type Snapshot struct {
	Config Config
	State  State
}

// StateClient reads and writes the opaque user fields.
type StateClient interface {
	GetState(ctx context.Context, field string) (string, error)
	PutState(ctx context.Context, field, value string) error
}

// Store loads and saves module configs and caches the last one per user.
// Concurrent writers are last-writer-wins.
type Store struct {
	client StateClient
	pub    Publisher

	mu    sync.Mutex
	cache map[string]Config
}

// NewStore returns a Store publishing through pub, or through a fresh Hub
// when pub is nil.
func NewStore(client StateClient, pub Publisher) *Store {
	if pub == nil {
		pub = NewHub()
	}
	return &Store{client: client, pub: pub, cache: make(map[string]Config)}
}

// Load fetches and opens the config. Crypto failures return
// common.ErrorKeyMissing, which callers treat as "log in again", never as
// a reason to reseed.
func (s *Store) Load(ctx context.Context, userID string, key cryptox.RawKey) (Snapshot, error) {
	if err := key.Validate(); err != nil {
		return Snapshot{}, err
	}

	raw, err := s.client.GetState(ctx, wire.StateModules)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load module config: %w", err)
	}

	cfg := Config{}
	state, err := openField(raw, key, &cfg)
	if err != nil {
		return Snapshot{}, err
	}
	if state == StateUnparsable || cfg == nil {
		cfg = Config{}
	}

	s.mu.Lock()
	s.cache[userID] = cfg.Clone()
	s.mu.Unlock()

	return Snapshot{Config: cfg, State: state}, nil
}

// Save seals and persists cfg, updates the cache and publishes it.
func (s *Store) Save(ctx context.Context, userID string, key cryptox.RawKey, cfg Config) error {
	value, err := sealField(cfg, key)
	if err != nil {
		return err
	}
	if err := s.client.PutState(ctx, wire.StateModules, value); err != nil {
		return fmt.Errorf("save module config: %w", err)
	}

	s.mu.Lock()
	s.cache[userID] = cfg.Clone()
	s.mu.Unlock()

	s.pub.Publish(userID, cfg)
	return nil
}

// Cached returns the last loaded or saved config of userID.
func (s *Store) Cached(userID string) (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.cache[userID]
	return cfg.Clone(), ok
}

// Forget drops the cached config, e.g. on logout.
func (s *Store) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, userID)
}

// NewModuleUserID returns a fresh sid: "m_" + 32 hex chars.
func NewModuleUserID() (string, error) {
	h, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	return sidPrefix + h, nil
}

// Enable turns moduleID on, creating its sid the first time. An existing
// sid is kept, so re-enabling finds the old records again.
func (s *Store) Enable(ctx context.Context, userID string, key cryptox.RawKey, moduleID string) (Entry, error) {
	snap, err := s.loadForUpdate(ctx, userID, key)
	if err != nil {
		return Entry{}, err
	}

	entry := snap.Config[moduleID]
	if entry.ModuleUserID == "" {
		if entry.ModuleUserID, err = NewModuleUserID(); err != nil {
			return Entry{}, err
		}
		if entry.GuardSeed, err = common.MakeRandHexString(16); err != nil {
			return Entry{}, err
		}
		entry.AlgoVersion = AlgoVersion
	}
	entry.Enabled = true
	snap.Config[moduleID] = entry

	if err := s.Save(ctx, userID, key, snap.Config); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Disable turns moduleID off. The entry and its sid stay.
func (s *Store) Disable(ctx context.Context, userID string, key cryptox.RawKey, moduleID string) error {
	snap, err := s.loadForUpdate(ctx, userID, key)
	if err != nil {
		return err
	}

	entry, ok := snap.Config[moduleID]
	if !ok || !entry.Enabled {
		return nil
	}
	entry.Enabled = false
	snap.Config[moduleID] = entry
	return s.Save(ctx, userID, key, snap.Config)
}

// loadForUpdate refuses to build on an unparsable config, which would
// otherwise be replaced by the edited empty map.
func (s *Store) loadForUpdate(ctx context.Context, userID string, key cryptox.RawKey) (Snapshot, error) {
	snap, err := s.Load(ctx, userID, key)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.State == StateUnparsable {
		return Snapshot{}, fmt.Errorf("%w: stored module config is unreadable; refusing to overwrite it", common.ErrorValidation)
	}
	return snap, nil
}

// ModuleUserID returns the sid of an enabled module.
func (c Config) ModuleUserID(moduleID string) (string, error) {
	entry, ok := c[moduleID]
	if !ok || entry.ModuleUserID == "" {
		return "", fmt.Errorf("%w: module %q has never been enabled", common.ErrorNotFound, moduleID)
	}
	if !entry.Enabled {
		return "", fmt.Errorf("%w: module %q is disabled", common.ErrorForbidden, moduleID)
	}
	return entry.ModuleUserID, nil
}
