package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore is a YAML-backed Store. The file holds a map of config key to
// ToolConfig. Patches rewrite the whole file through a temp-file rename so a
// crash mid-write never leaves a truncated config behind.
type FileStore struct {
	path string

	mu      sync.RWMutex
	configs map[string]ToolConfig
}

// NewFileStore opens (or creates) a YAML config file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, configs: map[string]ToolConfig{}}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &s.configs); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if s.configs == nil {
		s.configs = map[string]ToolConfig{}
	}
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (ToolConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[key]
	if !ok {
		return ToolConfig{}, ErrKeyNotFound
	}
	return cfg.Clone(), nil
}

// Patch implements Store. The updated snapshot is flushed to disk before the
// in-memory view changes, so readers never observe an unpersisted config.
func (s *FileStore) Patch(_ context.Context, key string, update func(cfg *ToolConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.configs[key].Clone()
	update(&cfg)

	next := make(map[string]ToolConfig, len(s.configs)+1)
	for k, v := range s.configs {
		next[k] = v
	}
	next[key] = cfg

	if err := s.flush(next); err != nil {
		return err
	}
	s.configs = next
	return nil
}

func (s *FileStore) flush(configs map[string]ToolConfig) error {
	b, err := yaml.Marshal(configs)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}
