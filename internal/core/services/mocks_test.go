package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// mockEmbedding implements driven.EmbeddingService.
// Returned vectors are the text's length repeated across dims dimensions,
// so tests get deterministic, distinguishable embeddings.
type mockEmbedding struct {
	mu         sync.Mutex
	dims       int
	embedErrs  map[string]error // per-text Embed failures
	failEmbeds int              // fail the first N Embed calls
	batchErr   error
	batchFn    func(texts []string) ([][]float32, error)
	embedCalls int
	batchCalls int
}

func newMockEmbedding(dims int) *mockEmbedding {
	return &mockEmbedding{dims: dims, embedErrs: make(map[string]error)}
}

func (m *mockEmbedding) vector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec
}

func (m *mockEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.failEmbeds > 0 {
		m.failEmbeds--
		return nil, domain.Transient(fmt.Errorf("upstream unavailable"))
	}
	if err, ok := m.embedErrs[text]; ok {
		return nil, err
	}
	return m.vector(text), nil
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	if m.batchFn != nil {
		return m.batchFn(texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vector(text)
	}
	return vectors, nil
}

func (m *mockEmbedding) Dimensions() int              { return m.dims }
func (m *mockEmbedding) ModelName() string            { return "mock-model" }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error                 { return nil }

// mockFeed implements driven.ChangeFeed. Poll pops batches in order and
// records the cursors it was called with.
type mockFeed struct {
	mu          sync.Mutex
	feedType    string
	batches     []domain.ChangeBatch
	pollErrs    []error // parallel to batches, nil entries succeed
	grants      map[string][]domain.AccessGrant
	listItems   []domain.ChangeItem
	listErr     error
	grantErrs   map[string]error
	pollCount   int
	cursorsSeen []string
	closed      bool
}

func newMockFeed(batches ...domain.ChangeBatch) *mockFeed {
	return &mockFeed{
		feedType:  "memory",
		batches:   batches,
		grants:    make(map[string][]domain.AccessGrant),
		grantErrs: make(map[string]error),
	}
}

func (m *mockFeed) Type() string { return m.feedType }

func (m *mockFeed) Poll(_ context.Context, cursor string) (*domain.ChangeBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursorsSeen = append(m.cursorsSeen, cursor)
	if m.pollCount < len(m.pollErrs) && m.pollErrs[m.pollCount] != nil {
		err := m.pollErrs[m.pollCount]
		m.pollCount++
		return nil, err
	}
	if m.pollCount >= len(m.batches) {
		return &domain.ChangeBatch{NextCursor: cursor}, nil
	}
	batch := m.batches[m.pollCount]
	m.pollCount++
	return &batch, nil
}

func (m *mockFeed) List(_ context.Context) ([]domain.ChangeItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listItems, nil
}

func (m *mockFeed) Grants(_ context.Context, fileID string) ([]domain.AccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.grantErrs[fileID]; ok {
		return nil, err
	}
	return m.grants[fileID], nil
}

func (m *mockFeed) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockFeedFactory implements driven.ChangeFeedFactory, handing out one
// fixed feed.
type mockFeedFactory struct {
	feed      driven.ChangeFeed
	createErr error
}

func (m *mockFeedFactory) Create(_ context.Context, _ domain.Source) (driven.ChangeFeed, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.feed, nil
}

// mockExtractor implements driven.Extractor with canned text per file.
type mockExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls []string
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{texts: make(map[string]string), errs: make(map[string]error)}
}

func (m *mockExtractor) Extract(_ context.Context, _, fileID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fileID)
	if err, ok := m.errs[fileID]; ok {
		return "", err
	}
	return m.texts[fileID], nil
}

// mockDirectory implements driven.Directory with a static group graph.
type mockDirectory struct {
	groups map[string]*domain.GroupMembers
	errs   map[string]error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		groups: make(map[string]*domain.GroupMembers),
		errs:   make(map[string]error),
	}
}

func (m *mockDirectory) ResolveGroup(_ context.Context, groupID string) (*domain.GroupMembers, error) {
	if err, ok := m.errs[groupID]; ok {
		return nil, err
	}
	members, ok := m.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	return members, nil
}
