package domain

import "time"

// SyncStatus describes the health of a source's synchronisation.
type SyncStatus string

const (
	// SyncStatusActive indicates the source is syncing normally.
	SyncStatusActive SyncStatus = "active"

	// SyncStatusPaused indicates reconciliation is suspended by an operator.
	// Reconcile triggers for a paused source are rejected.
	SyncStatusPaused SyncStatus = "paused"

	// SyncStatusError indicates the last reconciliation failed.
	// The error message is retained on the sync state.
	SyncStatusError SyncStatus = "error"
)

// Source represents a registered remote corpus root (one drive).
// Each source produces change batches via a change feed.
type Source struct {
	// ID is the unique identifier for the source.
	ID string

	// Name is the human-readable name for this source.
	Name string

	// Type identifies the change feed type (e.g., "drive", "memory").
	Type string

	// Config contains feed-specific configuration.
	Config map[string]string

	// CreatedAt is when the source was registered.
	CreatedAt time.Time

	// UpdatedAt is when the source was last updated.
	UpdatedAt time.Time
}

// SyncState tracks reconciliation progress for a source.
// The cursor only advances after a change batch has been durably applied,
// so a crashed or failed reconciliation re-polls the same batch.
type SyncState struct {
	// SourceID links to the Source being reconciled.
	SourceID string

	// Cursor is an opaque change feed token. Empty means "from the beginning":
	// the next poll acts as a full sync.
	Cursor string

	// Status is the current sync health.
	Status SyncStatus

	// FilesProcessed counts files applied during the last reconciliation.
	FilesProcessed int

	// ChunksCreated counts chunks written during the last reconciliation.
	ChunksCreated int

	// LastError holds the most recent failure message, empty when healthy.
	LastError string

	// LastSync is when the last reconciliation attempt finished.
	LastSync time.Time
}
