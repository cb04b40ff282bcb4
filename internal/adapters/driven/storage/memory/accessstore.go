package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure AccessStore implements the interface.
var _ driven.AccessStore = (*AccessStore)(nil)

// AccessStore is an in-memory implementation of driven.AccessStore.
// ReplaceAll swaps a pointer under the lock, so a query resolves its whole
// file set against one snapshot.
type AccessStore struct {
	mu       sync.RWMutex
	snapshot *domain.AccessSnapshot
}

// NewAccessStore creates a new in-memory access store.
func NewAccessStore() *AccessStore {
	return &AccessStore{snapshot: &domain.AccessSnapshot{}}
}

// ReplaceAll swaps the entire snapshot.
func (s *AccessStore) ReplaceAll(_ context.Context, snapshot domain.AccessSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snapshot
	return nil
}

// AccessibleFiles returns the file IDs the principal may currently see.
func (s *AccessStore) AccessibleFiles(_ context.Context, principalID string, includeAnonymous bool) (map[string]struct{}, error) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	files := make(map[string]struct{})
	for _, entry := range snapshot.Entries {
		if entry.PrincipalID == principalID {
			files[entry.FileID] = struct{}{}
		}
	}
	for _, open := range snapshot.Open {
		if open.Scope == domain.LinkScopeOrganization || (includeAnonymous && open.Scope == domain.LinkScopeAnonymous) {
			files[open.FileID] = struct{}{}
		}
	}
	return files, nil
}

// Snapshot returns the current materialised snapshot.
func (s *AccessStore) Snapshot(_ context.Context) (*domain.AccessSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}
