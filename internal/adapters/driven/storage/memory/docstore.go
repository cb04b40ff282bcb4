package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Replace and delete hold the write lock for their whole duration, so
// readers see a file's chunk set before or after a swap, never partway.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	chunks map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string][]domain.Chunk),
	}
}

// ReplaceChunks upserts the document and swaps its chunk set. A stored
// document already at doc.Version makes the call a no-op.
func (s *DocumentStore) ReplaceChunks(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.docs[doc.FileID]; ok {
		if existing.Version == doc.Version {
			return nil
		}
		doc.CreatedAt = existing.CreatedAt
	}

	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	s.docs[doc.FileID] = *doc
	s.chunks[doc.FileID] = stored
	return nil
}

// DeleteFile removes the document and all of its chunks.
func (s *DocumentStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, fileID)
	delete(s.chunks, fileID)
	return nil
}

// GetDocument retrieves a document by file ID.
func (s *DocumentStore) GetDocument(_ context.Context, fileID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns the documents of a source.
func (s *DocumentStore) ListDocuments(_ context.Context, sourceID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Document, 0)
	for _, doc := range s.docs {
		if doc.SourceID == sourceID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FileID < result[j].FileID })
	return result, nil
}

// Chunks returns a file's chunks ordered by index.
func (s *DocumentStore) Chunks(_ context.Context, fileID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.chunks[fileID]
	result := make([]domain.Chunk, len(stored))
	copy(result, stored)
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// ChunksByFiles returns the chunks of the given files. Unknown IDs
// contribute nothing.
func (s *DocumentStore) ChunksByFiles(_ context.Context, fileIDs []string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Chunk, 0)
	for _, fileID := range fileIDs {
		result = append(result, s.chunks[fileID]...)
	}
	return result, nil
}
