package driven

import (
	"context"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// DocumentStore persists documents and their chunk rows.
//
// The two mutating operations are atomic: concurrent readers observe either
// the pre-replace or post-replace chunk set for a file, never a mix.
type DocumentStore interface {
	// ReplaceChunks upserts the document and swaps its entire chunk set in
	// one atomic operation. When the stored document already carries
	// doc.Version the replace is a no-op, making re-application of an
	// already-applied change idempotent.
	ReplaceChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// DeleteFile tombstones a document: the document row and all of its
	// chunks are removed in one atomic operation. Deleting an unknown file
	// is not an error.
	DeleteFile(ctx context.Context, fileID string) error

	// GetDocument retrieves a document by file ID.
	GetDocument(ctx context.Context, fileID string) (*domain.Document, error)

	// ListDocuments returns the documents of a source.
	ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error)

	// Chunks returns a file's chunks ordered by index.
	Chunks(ctx context.Context, fileID string) ([]domain.Chunk, error)

	// ChunksByFiles returns the chunks of the given files. Unknown file IDs
	// contribute nothing. Used by the retrieval engine after permission
	// filtering.
	ChunksByFiles(ctx context.Context, fileIDs []string) ([]domain.Chunk, error)
}

// GrantStore persists raw access grants per file. Writes come from the
// external permission source; revocation is a soft delete (Active=false) so
// that re-applying a permission snapshot is idempotent.
type GrantStore interface {
	// ReplaceFileGrants swaps all grant rows of a file atomically, the way
	// the permission source reports them.
	ReplaceFileGrants(ctx context.Context, fileID string, grants []domain.AccessGrant) error

	// SaveGrant upserts a single grant, keyed by (file ID, grant ID).
	SaveGrant(ctx context.Context, grant domain.AccessGrant) error

	// RevokeGrant marks a grant inactive. Unknown grants are not an error.
	RevokeGrant(ctx context.Context, fileID, grantID string) error

	// DeleteFileGrants removes all grant rows of a tombstoned file.
	DeleteFileGrants(ctx context.Context, fileID string) error

	// ListGrants returns every stored grant, active or not. Effectiveness
	// filtering is the materialiser's concern.
	ListGrants(ctx context.Context) ([]domain.AccessGrant, error)

	// ListFileGrants returns the grant rows of one file.
	ListFileGrants(ctx context.Context, fileID string) ([]domain.AccessGrant, error)
}

// AccessStore persists the materialised access snapshot.
type AccessStore interface {
	// ReplaceAll swaps the entire snapshot atomically. Queries running
	// concurrently observe the old or the new snapshot, never a mix.
	ReplaceAll(ctx context.Context, snapshot domain.AccessSnapshot) error

	// AccessibleFiles returns the set of file IDs the principal may
	// currently see: files with a materialised entry for the principal,
	// files open to the organisation, and, when includeAnonymous is set,
	// files behind an anonymous link.
	AccessibleFiles(ctx context.Context, principalID string, includeAnonymous bool) (map[string]struct{}, error)

	// Snapshot returns the current materialised snapshot.
	Snapshot(ctx context.Context) (*domain.AccessSnapshot, error)
}
