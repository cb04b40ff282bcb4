package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
	"github.com/custodia-labs/sercha-indexd/internal/postprocessors/chunker"
)

// Ensure ReconcilerService implements the interface.
var _ driving.Reconciler = (*ReconcilerService)(nil)

// DefaultWorkers bounds per-batch file concurrency.
const DefaultWorkers = 4

// runProgress is the live state of one in-flight reconciliation.
type runProgress struct {
	filesProcessed int
	chunksCreated  int
	errorCount     int
}

// ReconcilerService pulls change batches from remote corpora and applies
// them to the local index.
//
// One reconciliation per source at a time; a concurrent trigger fails with
// domain.ErrSyncInProgress. Within a batch, deletes are tombstoned and
// adds/modifies are extracted, chunked, embedded and swapped in atomically
// per file. The cursor is persisted only after every item of a batch has
// been applied, so a failed or interrupted run re-polls the same batch.
// Re-application is idempotent: chunk replacement is keyed on the content
// version hash.
type ReconcilerService struct {
	sources      driven.SourceStore
	states       driven.SyncStateStore
	documents    driven.DocumentStore
	grants       driven.GrantStore
	feeds        driven.ChangeFeedFactory
	extractor    driven.Extractor
	splitter     *chunker.Splitter
	gate         *EmbedGate
	materializer driving.Materializer

	workers    int
	extensions map[string]bool // empty means all extensions accepted

	mu     sync.Mutex
	active map[string]*runProgress
}

// ReconcilerOption configures the reconciler.
type ReconcilerOption func(*ReconcilerService)

// WithWorkers sets the per-batch file concurrency.
func WithWorkers(n int) ReconcilerOption {
	return func(r *ReconcilerService) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithExtensions restricts ingestion to the given file extensions
// (lowercase, with leading dot). Files outside the set are skipped, not
// failed. An empty set accepts everything.
func WithExtensions(exts []string) ReconcilerOption {
	return func(r *ReconcilerService) {
		r.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			r.extensions[strings.ToLower(ext)] = true
		}
	}
}

// NewReconcilerService creates a new reconciler.
func NewReconcilerService(
	sources driven.SourceStore,
	states driven.SyncStateStore,
	documents driven.DocumentStore,
	grants driven.GrantStore,
	feeds driven.ChangeFeedFactory,
	extractor driven.Extractor,
	splitter *chunker.Splitter,
	gate *EmbedGate,
	materializer driving.Materializer,
	opts ...ReconcilerOption,
) *ReconcilerService {
	r := &ReconcilerService{
		sources:      sources,
		states:       states,
		documents:    documents,
		grants:       grants,
		feeds:        feeds,
		extractor:    extractor,
		splitter:     splitter,
		gate:         gate,
		materializer: materializer,
		workers:      DefaultWorkers,
		active:       make(map[string]*runProgress),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile pulls and applies pending change batches for one source.
func (r *ReconcilerService) Reconcile(ctx context.Context, sourceID string) (*domain.SyncReport, error) {
	return r.run(ctx, sourceID, false)
}

// Resync resets the source's cursor and re-ingests the whole corpus.
func (r *ReconcilerService) Resync(ctx context.Context, sourceID string) (*domain.SyncReport, error) {
	return r.run(ctx, sourceID, true)
}

// ReconcileAll reconciles every registered source. Failures are logged per
// source; the first one is returned after all sources have run.
func (r *ReconcilerService) ReconcileAll(ctx context.Context) error {
	sources, err := r.sources.List(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	var firstErr error
	for _, src := range sources {
		if _, err := r.Reconcile(ctx, src.ID); err != nil {
			logger.Error("Reconciliation of %s failed: %v", src.ID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("source %s: %w", src.ID, err)
			}
		}
	}
	return firstErr
}

// run is the shared body of Reconcile and Resync.
func (r *ReconcilerService) run(ctx context.Context, sourceID string, reset bool) (*domain.SyncReport, error) {
	source, err := r.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", sourceID, err)
	}

	state, err := r.loadState(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if state.Status == domain.SyncStatusPaused {
		return nil, fmt.Errorf("source %s: %w", sourceID, domain.ErrSourcePaused)
	}

	progress, err := r.acquire(sourceID)
	if err != nil {
		return nil, err
	}
	defer r.release(sourceID)

	if reset {
		state.Cursor = ""
	}

	feed, err := r.feeds.Create(ctx, *source)
	if err != nil {
		return nil, r.fail(ctx, state, fmt.Errorf("create %s feed: %w", source.Type, err))
	}
	defer feed.Close()

	logger.Section(fmt.Sprintf("Sync: %s", source.Name))
	start := time.Now()
	report := &domain.SyncReport{SourceID: sourceID}
	grantsTouched := false

	for {
		if err := ctx.Err(); err != nil {
			return report, r.fail(ctx, state, err)
		}

		batch, err := feed.Poll(ctx, state.Cursor)
		if err != nil {
			return report, r.fail(ctx, state, fmt.Errorf("poll: %w", err))
		}

		touched, err := r.applyBatch(ctx, feed, source, batch, report, progress)
		grantsTouched = grantsTouched || touched
		if err != nil {
			return report, r.fail(ctx, state, err)
		}
		if report.FirstError != nil {
			// A file-level failure means the batch was not fully applied.
			// The cursor stays put so the next run re-polls it; already
			// applied files are no-ops on re-application.
			break
		}

		state.Cursor = batch.NextCursor
		state.FilesProcessed = report.FilesProcessed
		state.ChunksCreated = report.ChunksCreated
		if err := r.states.Save(ctx, *state); err != nil {
			return report, r.fail(ctx, state, fmt.Errorf("save cursor: %w", err))
		}

		if !batch.HasMore {
			break
		}
	}

	report.Duration = time.Since(start)

	state.Status = domain.SyncStatusActive
	state.LastError = ""
	state.LastSync = time.Now()
	if report.FirstError != nil {
		state.Status = domain.SyncStatusError
		state.LastError = report.FirstError.Error()
	}
	if err := r.states.Save(ctx, *state); err != nil {
		return report, fmt.Errorf("save sync state: %w", err)
	}

	if grantsTouched && r.materializer != nil {
		r.materializer.MarkDirty()
	}

	logger.Info("Sync finished: %d processed, %d failed, %d deleted, %d chunks in %s",
		report.FilesProcessed, report.FilesFailed, report.FilesDeleted,
		report.ChunksCreated, report.Duration.Round(time.Millisecond))
	return report, nil
}

// applyBatch applies one change batch. Deletes run first and serially;
// add/modify items run concurrently across disjoint files. Returns whether
// any grant rows changed.
func (r *ReconcilerService) applyBatch(
	ctx context.Context,
	feed driven.ChangeFeed,
	source *domain.Source,
	batch *domain.ChangeBatch,
	report *domain.SyncReport,
	progress *runProgress,
) (bool, error) {
	items := dedupeChanges(batch.Items)
	grantsTouched := false

	var upserts []domain.ChangeItem
	for _, item := range items {
		if item.Kind == domain.ChangeDeleted {
			if err := r.documents.DeleteFile(ctx, item.FileID); err != nil {
				return grantsTouched, fmt.Errorf("delete file %s: %w", item.FileID, err)
			}
			if err := r.grants.DeleteFileGrants(ctx, item.FileID); err != nil {
				return grantsTouched, fmt.Errorf("delete grants of %s: %w", item.FileID, err)
			}
			grantsTouched = true
			report.FilesDeleted++
			continue
		}
		if !r.supported(item.Filename) {
			logger.Debug("Skipping %s: unsupported extension", item.Filename)
			continue
		}
		upserts = append(upserts, item)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, item := range upserts {
		g.Go(func() error {
			chunks, err := r.ingestFile(gctx, feed, source.ID, item)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// File-level failure: the batch continues, the cursor
				// will not advance.
				logger.Warn("File %s failed: %v", item.FileID, err)
				report.FilesFailed++
				progress.errorCount++
				if report.FirstError == nil {
					report.FirstError = fmt.Errorf("file %s: %w", item.FileID, err)
				}
				return nil
			}
			grantsTouched = true
			report.FilesProcessed++
			report.ChunksCreated += chunks
			progress.filesProcessed++
			progress.chunksCreated += chunks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return grantsTouched, err
	}
	return grantsTouched, nil
}

// ingestFile extracts, chunks, embeds and stores one file, then refreshes
// its grant rows. Returns the number of chunks written.
func (r *ReconcilerService) ingestFile(
	ctx context.Context,
	feed driven.ChangeFeed,
	sourceID string,
	item domain.ChangeItem,
) (int, error) {
	text, err := r.extractor.Extract(ctx, sourceID, item.FileID, item.Filename)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	version := fmt.Sprintf("%016x", xxhash.Sum64String(text))
	now := time.Now()
	doc := &domain.Document{
		FileID:    item.FileID,
		SourceID:  sourceID,
		Filename:  item.Filename,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}

	written := 0
	existing, err := r.documents.GetDocument(ctx, item.FileID)
	if err == nil && existing.Version == version {
		logger.Debug("File %s unchanged at version %s", item.FileID, version)
	} else {
		chunks := r.splitter.Split(text)
		for i := range chunks {
			chunks[i].FileID = item.FileID
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, errs := r.gate.EmbedAll(ctx, texts)

		embedded := chunks[:0]
		for i := range chunks {
			if errs[i] != nil {
				if domain.IsValidation(errs[i]) {
					logger.Warn("Dropping chunk %d of %s: %v", chunks[i].Index, item.FileID, errs[i])
					continue
				}
				return 0, fmt.Errorf("embed chunk %d: %w", chunks[i].Index, errs[i])
			}
			chunks[i].Embedding = vectors[i]
			embedded = append(embedded, chunks[i])
		}
		// Dropped chunks leave index gaps; renumber so indices stay
		// contiguous from zero.
		for i := range embedded {
			embedded[i].Index = i
		}

		if err := r.documents.ReplaceChunks(ctx, doc, embedded); err != nil {
			return 0, fmt.Errorf("replace chunks: %w", err)
		}
		written = len(embedded)
	}

	grants, err := feed.Grants(ctx, item.FileID)
	if err != nil {
		return 0, fmt.Errorf("fetch grants: %w", err)
	}
	if err := r.grants.ReplaceFileGrants(ctx, item.FileID, grants); err != nil {
		return 0, fmt.Errorf("replace grants: %w", err)
	}

	return written, nil
}

// Pause suspends reconciliation for a source.
func (r *ReconcilerService) Pause(ctx context.Context, sourceID string) error {
	return r.setStatus(ctx, sourceID, domain.SyncStatusPaused)
}

// Resume re-enables reconciliation for a paused source.
func (r *ReconcilerService) Resume(ctx context.Context, sourceID string) error {
	return r.setStatus(ctx, sourceID, domain.SyncStatusActive)
}

func (r *ReconcilerService) setStatus(ctx context.Context, sourceID string, status domain.SyncStatus) error {
	if _, err := r.sources.Get(ctx, sourceID); err != nil {
		return fmt.Errorf("get source %s: %w", sourceID, err)
	}
	state, err := r.loadState(ctx, sourceID)
	if err != nil {
		return err
	}
	state.Status = status
	if err := r.states.Save(ctx, *state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	logger.Info("Source %s is now %s", sourceID, status)
	return nil
}

// Status reports the source's live progress merged with its persisted state.
func (r *ReconcilerService) Status(ctx context.Context, sourceID string) (*driving.SyncStatus, error) {
	state, err := r.loadState(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	status := &driving.SyncStatus{
		SourceID:       sourceID,
		Status:         state.Status,
		FilesProcessed: state.FilesProcessed,
		ChunksCreated:  state.ChunksCreated,
		LastError:      state.LastError,
		LastSync:       state.LastSync,
	}

	r.mu.Lock()
	if progress, ok := r.active[sourceID]; ok {
		status.Running = true
		status.FilesProcessed = progress.filesProcessed
		status.ChunksCreated = progress.chunksCreated
		status.ErrorCount = progress.errorCount
	}
	r.mu.Unlock()

	return status, nil
}

// VerifyIntegrity compares the remote corpus listing with stored documents.
func (r *ReconcilerService) VerifyIntegrity(ctx context.Context, sourceID string) (*driving.IntegrityReport, error) {
	source, err := r.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", sourceID, err)
	}

	feed, err := r.feeds.Create(ctx, *source)
	if err != nil {
		return nil, fmt.Errorf("create %s feed: %w", source.Type, err)
	}
	defer feed.Close()

	remote, err := feed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	docs, err := r.documents.ListDocuments(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	remoteIDs := make(map[string]bool, len(remote))
	for _, item := range remote {
		if r.supported(item.Filename) {
			remoteIDs[item.FileID] = true
		}
	}
	indexedIDs := make(map[string]bool, len(docs))
	for _, doc := range docs {
		indexedIDs[doc.FileID] = true
	}

	report := &driving.IntegrityReport{
		SourceID:     sourceID,
		RemoteFiles:  len(remoteIDs),
		IndexedFiles: len(indexedIDs),
	}
	for id := range remoteIDs {
		if !indexedIDs[id] {
			report.Missing = append(report.Missing, id)
		}
	}
	for id := range indexedIDs {
		if !remoteIDs[id] {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	return report, nil
}

// PruneOrphans removes documents the integrity check classifies as orphaned,
// along with their grant rows. Grant removal marks the access snapshot dirty.
func (r *ReconcilerService) PruneOrphans(ctx context.Context, sourceID string) (int, error) {
	report, err := r.VerifyIntegrity(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, fileID := range report.Orphaned {
		if err := r.documents.DeleteFile(ctx, fileID); err != nil {
			return pruned, fmt.Errorf("prune %s: %w", fileID, err)
		}
		if err := r.grants.DeleteFileGrants(ctx, fileID); err != nil {
			return pruned, fmt.Errorf("prune grants %s: %w", fileID, err)
		}
		pruned++
	}

	if pruned > 0 {
		r.materializer.MarkDirty()
		logger.Info("Pruned %d orphaned documents from source %s", pruned, sourceID)
	}
	return pruned, nil
}

// acquire claims the per-source single-flight slot.
func (r *ReconcilerService) acquire(sourceID string) (*runProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.active[sourceID]; running {
		return nil, fmt.Errorf("source %s: %w", sourceID, domain.ErrSyncInProgress)
	}
	progress := &runProgress{}
	r.active[sourceID] = progress
	return progress, nil
}

func (r *ReconcilerService) release(sourceID string) {
	r.mu.Lock()
	delete(r.active, sourceID)
	r.mu.Unlock()
}

// loadState fetches the source's sync state, starting fresh when none exists.
func (r *ReconcilerService) loadState(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	state, err := r.states.Get(ctx, sourceID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get sync state %s: %w", sourceID, err)
	}
	return &domain.SyncState{SourceID: sourceID, Status: domain.SyncStatusActive}, nil
}

// fail persists the error status and message, then returns the error.
func (r *ReconcilerService) fail(ctx context.Context, state *domain.SyncState, cause error) error {
	state.Status = domain.SyncStatusError
	state.LastError = cause.Error()
	state.LastSync = time.Now()
	if err := r.states.Save(ctx, *state); err != nil {
		logger.Error("Failed to record sync error for %s: %v", state.SourceID, err)
	}
	return cause
}

// supported reports whether the filename's extension is ingestible.
func (r *ReconcilerService) supported(filename string) bool {
	if len(r.extensions) == 0 {
		return true
	}
	return r.extensions[strings.ToLower(filepath.Ext(filename))]
}

// dedupeChanges collapses repeated changes to the same file, keeping the
// last one. Feed order is preserved for the survivors, so a later delete
// wins over an earlier modify.
func dedupeChanges(items []domain.ChangeItem) []domain.ChangeItem {
	last := make(map[string]int, len(items))
	for i, item := range items {
		last[item.FileID] = i
	}
	out := make([]domain.ChangeItem, 0, len(last))
	for i, item := range items {
		if last[item.FileID] == i {
			out = append(out, item)
		}
	}
	return out
}
