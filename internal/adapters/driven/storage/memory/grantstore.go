package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure GrantStore implements the interface.
var _ driven.GrantStore = (*GrantStore)(nil)

// GrantStore is an in-memory implementation of driven.GrantStore.
type GrantStore struct {
	mu     sync.RWMutex
	grants map[string]map[string]domain.AccessGrant // fileID -> grantID -> grant
}

// NewGrantStore creates a new in-memory grant store.
func NewGrantStore() *GrantStore {
	return &GrantStore{
		grants: make(map[string]map[string]domain.AccessGrant),
	}
}

// ReplaceFileGrants swaps all grant rows of a file.
func (s *GrantStore) ReplaceFileGrants(_ context.Context, fileID string, grants []domain.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make(map[string]domain.AccessGrant, len(grants))
	for _, grant := range grants {
		grant.FileID = fileID
		rows[grant.GrantID] = grant
	}
	s.grants[fileID] = rows
	return nil
}

// SaveGrant upserts a single grant.
func (s *GrantStore) SaveGrant(_ context.Context, grant domain.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.grants[grant.FileID]
	if !ok {
		rows = make(map[string]domain.AccessGrant)
		s.grants[grant.FileID] = rows
	}
	rows[grant.GrantID] = grant
	return nil
}

// RevokeGrant marks a grant inactive. Unknown grants are not an error.
func (s *GrantStore) RevokeGrant(_ context.Context, fileID, grantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grant, ok := s.grants[fileID][grantID]; ok {
		grant.Active = false
		s.grants[fileID][grantID] = grant
	}
	return nil
}

// DeleteFileGrants removes all grant rows of a file.
func (s *GrantStore) DeleteFileGrants(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, fileID)
	return nil
}

// ListGrants returns every stored grant, active or not.
func (s *GrantStore) ListGrants(_ context.Context) ([]domain.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.AccessGrant, 0)
	for _, rows := range s.grants {
		for _, grant := range rows {
			result = append(result, grant)
		}
	}
	return result, nil
}

// ListFileGrants returns the grant rows of one file.
func (s *GrantStore) ListFileGrants(_ context.Context, fileID string) ([]domain.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.AccessGrant, 0, len(s.grants[fileID]))
	for _, grant := range s.grants[fileID] {
		result = append(result, grant)
	}
	return result, nil
}
