package domain

import "time"

// Document represents one remote file tracked by the index.
type Document struct {
	// FileID is the file's identifier within its source.
	FileID string

	// SourceID links to the Source that produced this document.
	SourceID string

	// Filename is the remote file name, used for citations.
	Filename string

	// Version is a hash of the extracted content. Chunk replacement is
	// keyed on (FileID, Version) so re-applying an already-applied change
	// is a no-op.
	Version string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Chunk represents a contiguous text span of one document.
//
// For a given FileID the set of Index values is contiguous from 0 and is
// replaced in full on every re-ingestion; no stale chunk from a previous
// version survives a successful replace.
type Chunk struct {
	// FileID links to the parent Document.
	FileID string

	// Index is the stable 0-based ordinal within the document.
	Index int

	// Text is the chunk content.
	Text string

	// WordCount is the number of words in Text.
	WordCount int

	// Embedding is the vector representation, fixed dimensionality
	// across the whole index.
	Embedding []float32
}

// ChangeKind tags a change feed item.
type ChangeKind int

const (
	// ChangeAdded indicates a new file.
	ChangeAdded ChangeKind = iota

	// ChangeModified indicates changed file content.
	ChangeModified

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the change kind label.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeItem is one entry in a change batch.
type ChangeItem struct {
	// Kind is the type of change.
	Kind ChangeKind

	// FileID identifies the affected file within the source.
	FileID string

	// Filename is the file name at the time of the change.
	Filename string
}

// ChangeBatch is one page of changes pulled from a change feed.
type ChangeBatch struct {
	// Items are the changes in feed order.
	Items []ChangeItem

	// NextCursor is the opaque token to store once every item has been
	// durably applied. Never interpreted by the core.
	NextCursor string

	// HasMore indicates further batches are immediately available.
	HasMore bool
}

// SyncReport summarises one reconciliation run.
type SyncReport struct {
	// SourceID is the reconciled source.
	SourceID string

	// FilesProcessed counts files applied successfully.
	FilesProcessed int

	// FilesFailed counts files skipped after a file-level failure.
	FilesFailed int

	// FilesDeleted counts tombstoned files.
	FilesDeleted int

	// ChunksCreated counts chunks written.
	ChunksCreated int

	// FirstError is the first file-level failure encountered, nil if none.
	FirstError error

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}
