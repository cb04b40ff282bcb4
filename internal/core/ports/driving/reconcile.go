package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// Reconciler drives delta synchronisation between remote corpora and the
// local chunk index.
type Reconciler interface {
	// Reconcile pulls and applies pending change batches for one source.
	// At most one reconciliation runs per source at a time; a concurrent
	// trigger fails with domain.ErrSyncInProgress. The source's cursor
	// advances only after a whole batch has been durably applied.
	Reconcile(ctx context.Context, sourceID string) (*domain.SyncReport, error)

	// ReconcileAll reconciles every registered source. Sources run
	// independently; one source's failure does not stop the others.
	ReconcileAll(ctx context.Context) error

	// Resync resets the source's cursor and re-ingests the entire corpus.
	// Idempotent with respect to existing chunk data.
	Resync(ctx context.Context, sourceID string) (*domain.SyncReport, error)

	// Pause suspends reconciliation for a source.
	Pause(ctx context.Context, sourceID string) error

	// Resume re-enables reconciliation for a paused source.
	Resume(ctx context.Context, sourceID string) error

	// Status reports the source's live progress merged with its persisted
	// sync state.
	Status(ctx context.Context, sourceID string) (*SyncStatus, error)

	// VerifyIntegrity compares the remote corpus listing against stored
	// documents and reports discrepancies. Read-only.
	VerifyIntegrity(ctx context.Context, sourceID string) (*IntegrityReport, error)

	// PruneOrphans deletes indexed documents whose file no longer exists
	// in the remote corpus. Returns the number of documents removed.
	PruneOrphans(ctx context.Context, sourceID string) (int, error)
}

// SyncStatus is operator-visible reconciliation state for one source.
type SyncStatus struct {
	// SourceID is the source being described.
	SourceID string

	// Running indicates a reconciliation is currently in flight.
	Running bool

	// Status is the persisted sync health.
	Status domain.SyncStatus

	// FilesProcessed counts files applied by the current or last run.
	FilesProcessed int

	// ChunksCreated counts chunks written by the current or last run.
	ChunksCreated int

	// ErrorCount counts file-level failures of the current run.
	ErrorCount int

	// LastError is the most recent failure message, empty when healthy.
	LastError string

	// LastSync is when the last reconciliation attempt finished.
	LastSync time.Time
}

// IntegrityReport lists discrepancies between the remote corpus and the
// local index.
type IntegrityReport struct {
	// SourceID is the checked source.
	SourceID string

	// RemoteFiles counts files currently in the corpus.
	RemoteFiles int

	// IndexedFiles counts documents currently stored for the source.
	IndexedFiles int

	// Missing lists file IDs present remotely but absent from the index.
	Missing []string

	// Orphaned lists file IDs present in the index but gone remotely.
	Orphaned []string
}
