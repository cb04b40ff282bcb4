package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/postprocessors/chunker"
)

// mockMaterializer records dirty marks.
type mockMaterializer struct {
	mu      sync.Mutex
	dirty   int
	rebuilt int
}

func (m *mockMaterializer) MarkDirty() {
	m.mu.Lock()
	m.dirty++
	m.mu.Unlock()
}

func (m *mockMaterializer) Rebuild(_ context.Context) (int, error) {
	m.mu.Lock()
	m.rebuilt++
	m.mu.Unlock()
	return 0, nil
}

func (m *mockMaterializer) Run(ctx context.Context, _ time.Duration) {
	<-ctx.Done()
}

// reconcilerFixture bundles a reconciler with its backing stores and mocks.
type reconcilerFixture struct {
	sources      *memory.SourceStore
	states       *memory.SyncStateStore
	documents    *memory.DocumentStore
	grants       *memory.GrantStore
	feed         *mockFeed
	extractor    *mockExtractor
	embedding    *mockEmbedding
	materializer *mockMaterializer
	reconciler   *ReconcilerService
}

func newFixture(t *testing.T, feed *mockFeed, opts ...ReconcilerOption) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		sources:      memory.NewSourceStore(),
		states:       memory.NewSyncStateStore(),
		documents:    memory.NewDocumentStore(),
		grants:       memory.NewGrantStore(),
		feed:         feed,
		extractor:    newMockExtractor(),
		embedding:    newMockEmbedding(4),
		materializer: &mockMaterializer{},
	}

	require.NoError(t, f.sources.Save(context.Background(), domain.Source{
		ID: "s1", Name: "Test Drive", Type: "memory",
	}))

	splitter := chunker.New(chunker.WithSize(5), chunker.WithOverlap(1), chunker.WithMinWords(1))
	gate := NewEmbedGate(f.embedding, WithBackoff(time.Millisecond, time.Millisecond))

	f.reconciler = NewReconcilerService(
		f.sources, f.states, f.documents, f.grants,
		&mockFeedFactory{feed: feed}, f.extractor, splitter, gate,
		f.materializer, opts...,
	)
	return f
}

func TestReconciler_AppliesBatch(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{
		Items: []domain.ChangeItem{
			{Kind: domain.ChangeAdded, FileID: "f1", Filename: "a.txt"},
			{Kind: domain.ChangeAdded, FileID: "f2", Filename: "b.txt"},
		},
		NextCursor: "c1",
	})
	feed.grants["f1"] = []domain.AccessGrant{
		{GrantID: "g1", Kind: domain.SubjectUser, SubjectID: "alice", Role: domain.RoleRead, Active: true},
	}

	f := newFixture(t, feed)
	f.extractor.texts["f1"] = "one two three four five six"
	f.extractor.texts["f2"] = "alpha beta gamma"

	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 0, report.FilesFailed)
	assert.Equal(t, 3, report.ChunksCreated)

	// Cursor persisted after the applied batch.
	state, err := f.states.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", state.Cursor)
	assert.Equal(t, domain.SyncStatusActive, state.Status)
	assert.Empty(t, state.LastError)

	// Chunks and grants landed.
	chunks, err := f.documents.Chunks(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Len(t, c.Embedding, 4)
	}

	grants, err := f.grants.ListFileGrants(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	assert.True(t, feed.closed)
	assert.Equal(t, 1, f.materializer.dirty)
}

func TestReconciler_CursorUnchangedOnFileFailure(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{
		Items: []domain.ChangeItem{
			{Kind: domain.ChangeAdded, FileID: "good", Filename: "a.txt"},
			{Kind: domain.ChangeAdded, FileID: "bad", Filename: "b.txt"},
		},
		NextCursor: "c1",
	})

	f := newFixture(t, feed)
	require.NoError(t, f.states.Save(ctx, domain.SyncState{
		SourceID: "s1", Cursor: "c0", Status: domain.SyncStatusActive,
	}))
	f.extractor.texts["good"] = "some words here"
	f.extractor.errs["bad"] = fmt.Errorf("extraction exploded")

	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 1, report.FilesFailed)
	require.Error(t, report.FirstError)
	assert.Contains(t, report.FirstError.Error(), "bad")

	// The applied file stays applied, but the cursor did not move.
	state, err := f.states.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c0", state.Cursor)
	assert.Equal(t, domain.SyncStatusError, state.Status)
	assert.NotEmpty(t, state.LastError)

	chunks, err := f.documents.Chunks(ctx, "good")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestReconciler_RepollIsIdempotent(t *testing.T) {
	ctx := context.Background()
	item := domain.ChangeItem{Kind: domain.ChangeAdded, FileID: "f1", Filename: "a.txt"}
	feed := newMockFeed(
		domain.ChangeBatch{Items: []domain.ChangeItem{item}, NextCursor: "c1"},
		domain.ChangeBatch{Items: []domain.ChangeItem{item}, NextCursor: "c1"},
	)

	f := newFixture(t, feed)
	f.extractor.texts["f1"] = "same content both times"

	_, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	before, err := f.documents.GetDocument(ctx, "f1")
	require.NoError(t, err)

	// Second run re-applies the same change without rewriting chunks.
	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 0, report.ChunksCreated)

	after, err := f.documents.GetDocument(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestReconciler_DeleteTombstones(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(
		domain.ChangeBatch{
			Items:      []domain.ChangeItem{{Kind: domain.ChangeAdded, FileID: "f1", Filename: "a.txt"}},
			NextCursor: "c1",
		},
		domain.ChangeBatch{
			Items:      []domain.ChangeItem{{Kind: domain.ChangeDeleted, FileID: "f1", Filename: "a.txt"}},
			NextCursor: "c2",
		},
	)
	feed.grants["f1"] = []domain.AccessGrant{
		{GrantID: "g1", Kind: domain.SubjectUser, SubjectID: "alice", Role: domain.RoleRead, Active: true},
	}

	f := newFixture(t, feed)
	f.extractor.texts["f1"] = "doomed content"

	_, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)

	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesDeleted)

	_, err = f.documents.GetDocument(ctx, "f1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	grants, err := f.grants.ListFileGrants(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestReconciler_DedupesWithinBatch(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{
		Items: []domain.ChangeItem{
			{Kind: domain.ChangeAdded, FileID: "f1", Filename: "a.txt"},
			{Kind: domain.ChangeModified, FileID: "f1", Filename: "a.txt"},
			{Kind: domain.ChangeDeleted, FileID: "f1", Filename: "a.txt"},
		},
		NextCursor: "c1",
	})

	f := newFixture(t, feed)
	f.extractor.texts["f1"] = "should never be ingested"

	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesProcessed)
	assert.Equal(t, 1, report.FilesDeleted)
	assert.Empty(t, f.extractor.calls)
}

func TestReconciler_SkipsUnsupportedExtensions(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{
		Items: []domain.ChangeItem{
			{Kind: domain.ChangeAdded, FileID: "f1", Filename: "keep.txt"},
			{Kind: domain.ChangeAdded, FileID: "f2", Filename: "skip.exe"},
		},
		NextCursor: "c1",
	})

	f := newFixture(t, feed, WithExtensions([]string{".txt", ".md"}))
	f.extractor.texts["f1"] = "kept words"

	report, err := f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, []string{"f1"}, f.extractor.calls)
}

func TestReconciler_SingleFlight(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{
		Items:      []domain.ChangeItem{{Kind: domain.ChangeAdded, FileID: "f1", Filename: "a.txt"}},
		NextCursor: "c1",
	})

	f := newFixture(t, feed)

	started := make(chan struct{})
	release := make(chan struct{})
	f.extractor.texts["f1"] = "slow file"
	slow := &blockingExtractor{inner: f.extractor, started: started, release: release}
	f.reconciler.extractor = slow

	done := make(chan error, 1)
	go func() {
		_, err := f.reconciler.Reconcile(ctx, "s1")
		done <- err
	}()

	<-started
	_, err := f.reconciler.Reconcile(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	status, err := f.reconciler.Status(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Running)

	close(release)
	require.NoError(t, <-done)

	// The slot is free again once the run finishes.
	_, err = f.reconciler.Reconcile(ctx, "s1")
	require.NoError(t, err)
}

// blockingExtractor signals when extraction starts and waits to be released.
type blockingExtractor struct {
	inner   *mockExtractor
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingExtractor) Extract(ctx context.Context, sourceID, fileID, filename string) (string, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	return b.inner.Extract(ctx, sourceID, fileID, filename)
}

func TestReconciler_PauseResume(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{NextCursor: "c1"})
	f := newFixture(t, feed)

	require.NoError(t, f.reconciler.Pause(ctx, "s1"))

	_, err := f.reconciler.Reconcile(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSourcePaused)

	require.NoError(t, f.reconciler.Resume(ctx, "s1"))
	_, err = f.reconciler.Reconcile(ctx, "s1")
	assert.NoError(t, err)
}

func TestReconciler_ResyncResetsCursor(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(domain.ChangeBatch{NextCursor: "fresh"})
	f := newFixture(t, feed)

	require.NoError(t, f.states.Save(ctx, domain.SyncState{
		SourceID: "s1", Cursor: "old", Status: domain.SyncStatusActive,
	}))

	_, err := f.reconciler.Resync(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, feed.cursorsSeen)

	state, err := f.states.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", state.Cursor)
}

func TestReconciler_UnknownSource(t *testing.T) {
	feed := newMockFeed()
	f := newFixture(t, feed)

	_, err := f.reconciler.Reconcile(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconciler_PollFailureSetsErrorStatus(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed()
	feed.pollErrs = []error{fmt.Errorf("feed unreachable")}
	f := newFixture(t, feed)

	_, err := f.reconciler.Reconcile(ctx, "s1")
	require.Error(t, err)

	state, err := f.states.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, state.Status)
	assert.Contains(t, state.LastError, "unreachable")
}

func TestReconciler_VerifyIntegrity(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed()
	feed.listItems = []domain.ChangeItem{
		{FileID: "f1", Filename: "a.txt"},
		{FileID: "f2", Filename: "b.txt"},
	}

	f := newFixture(t, feed)
	require.NoError(t, f.documents.ReplaceChunks(ctx,
		&domain.Document{FileID: "f1", SourceID: "s1", Version: "v"}, nil))
	require.NoError(t, f.documents.ReplaceChunks(ctx,
		&domain.Document{FileID: "stale", SourceID: "s1", Version: "v"}, nil))

	report, err := f.reconciler.VerifyIntegrity(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.RemoteFiles)
	assert.Equal(t, 2, report.IndexedFiles)
	assert.Equal(t, []string{"f2"}, report.Missing)
	assert.Equal(t, []string{"stale"}, report.Orphaned)
}

func TestReconciler_PruneOrphans(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed()
	feed.listItems = []domain.ChangeItem{
		{FileID: "f1", Filename: "a.txt"},
	}

	f := newFixture(t, feed)
	require.NoError(t, f.documents.ReplaceChunks(ctx,
		&domain.Document{FileID: "f1", SourceID: "s1", Version: "v"}, nil))
	require.NoError(t, f.documents.ReplaceChunks(ctx,
		&domain.Document{FileID: "stale", SourceID: "s1", Version: "v"}, nil))
	require.NoError(t, f.grants.ReplaceFileGrants(ctx, "stale", []domain.AccessGrant{
		{FileID: "stale", Kind: domain.SubjectUser, SubjectID: "alice", Role: domain.RoleRead, Active: true},
	}))

	pruned, err := f.reconciler.PruneOrphans(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	docs, err := f.documents.ListDocuments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "f1", docs[0].FileID)

	staleGrants, err := f.grants.ListFileGrants(ctx, "stale")
	require.NoError(t, err)
	assert.Empty(t, staleGrants)
	assert.Equal(t, 1, f.materializer.dirty)
}

func TestReconciler_PruneOrphans_NothingToDo(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed()
	feed.listItems = []domain.ChangeItem{{FileID: "f1", Filename: "a.txt"}}

	f := newFixture(t, feed)
	require.NoError(t, f.documents.ReplaceChunks(ctx,
		&domain.Document{FileID: "f1", SourceID: "s1", Version: "v"}, nil))

	pruned, err := f.reconciler.PruneOrphans(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
	assert.Equal(t, 0, f.materializer.dirty)
}

func TestReconciler_ReconcileAll(t *testing.T) {
	ctx := context.Background()
	feed := newMockFeed(
		domain.ChangeBatch{NextCursor: "c1"},
		domain.ChangeBatch{NextCursor: "c1"},
	)
	f := newFixture(t, feed)
	require.NoError(t, f.sources.Save(ctx, domain.Source{ID: "s2", Name: "Second", Type: "memory"}))

	require.NoError(t, f.reconciler.ReconcileAll(ctx))

	for _, id := range []string{"s1", "s2"} {
		state, err := f.states.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, "c1", state.Cursor, id)
	}
}
