package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/artifactmesh/core"
)

// InMemoryStore is a trivial in-process core.VersionStore implementation
// useful for tests, examples and single-process prototypes. It keeps all
// version chains in a map guarded by an RWMutex. Versions are value types, so
// retrieval hands out copies and callers cannot mutate stored history.
//
// Layout: artifactID -> ordered slice of versions (index i holds version i+1)
//
// This implementation does not enforce retention limits or quotas. For
// anything that must survive a process restart, use the sqlite subpackage.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]core.Version
}

// compile-time interface check
var _ core.VersionStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory version store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{versions: make(map[string][]core.Version)}
}

// GetCurrent implements core.VersionStore.
func (s *InMemoryStore) GetCurrent(_ context.Context, artifactID string) (core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, ok := s.versions[artifactID]
	if !ok || len(chain) == 0 {
		return core.Version{}, ErrNotFound
	}
	return chain[len(chain)-1], nil
}

// GetVersion implements core.VersionStore.
func (s *InMemoryStore) GetVersion(_ context.Context, artifactID string, number int) (core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, ok := s.versions[artifactID]
	if !ok || len(chain) == 0 {
		return core.Version{}, ErrNotFound
	}
	if number < 1 || number > len(chain) {
		return core.Version{}, ErrVersionNotFound
	}
	return chain[number-1], nil
}

// ListVersions implements core.VersionStore. The returned slice is a snapshot
// and safe for caller mutation.
func (s *InMemoryStore) ListVersions(_ context.Context, artifactID string) ([]core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, ok := s.versions[artifactID]
	if !ok || len(chain) == 0 {
		return nil, ErrNotFound
	}
	out := make([]core.Version, len(chain))
	copy(out, chain)
	return out, nil
}

// SaveVersion implements core.VersionStore. The version number is allocated
// under the write lock, so numbering stays gap-free and a saved version is
// visible atomically.
func (s *InMemoryStore) SaveVersion(_ context.Context, draft core.VersionDraft) (core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.versions[draft.ArtifactID]
	v := core.Version{
		ArtifactID: draft.ArtifactID,
		Number:     len(chain) + 1,
		Title:      draft.Title,
		Kind:       draft.Kind,
		Content:    draft.Content,
		Parent:     draft.Parent,
		Metadata:   draft.Metadata,
	}
	if v.Metadata.CreatedAt.IsZero() {
		v.Metadata.CreatedAt = time.Now().UTC()
	}
	s.versions[draft.ArtifactID] = append(chain, v)
	return v, nil
}
