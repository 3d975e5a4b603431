package config

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound indicates no configuration exists under the requested key.
var ErrKeyNotFound = errors.New("config key not found")

// Store is the read/update-by-key surface an external admin UI consumes.
type Store interface {
	// Get returns the configuration stored under key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (ToolConfig, error)

	// Patch applies update to the configuration under key and persists the
	// result. A missing key starts from a zero ToolConfig.
	Patch(ctx context.Context, key string, update func(cfg *ToolConfig)) error
}

// MemoryStore is a concurrency-safe in-memory Store for tests and embedding.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]ToolConfig
}

// NewMemoryStore constructs a MemoryStore seeded with the given configs.
func NewMemoryStore(seed map[string]ToolConfig) *MemoryStore {
	configs := make(map[string]ToolConfig, len(seed))
	for k, v := range seed {
		configs[k] = v.Clone()
	}
	return &MemoryStore{configs: configs}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (ToolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[key]
	if !ok {
		return ToolConfig{}, ErrKeyNotFound
	}
	return cfg.Clone(), nil
}

// Patch implements Store.
func (s *MemoryStore) Patch(_ context.Context, key string, update func(cfg *ToolConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configs[key].Clone()
	update(&cfg)
	s.configs[key] = cfg
	return nil
}
