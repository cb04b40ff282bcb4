package driven

import (
	"context"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// ChangeFeed pulls change batches from a remote corpus.
// Each feed type (drive, memory, etc.) implements this interface.
type ChangeFeed interface {
	// Type returns the feed type identifier.
	Type() string

	// Poll fetches the next batch of changes after the given cursor.
	// The cursor is an opaque token produced by a previous batch; an empty
	// cursor enumerates the entire corpus as added items (full sync).
	// The returned batch carries the cursor to persist once every item
	// has been durably applied.
	Poll(ctx context.Context, cursor string) (*domain.ChangeBatch, error)

	// List enumerates the corpus's current files without touching cursor
	// state. Used by the integrity check.
	List(ctx context.Context) ([]domain.ChangeItem, error)

	// Grants returns the file's sharing grants as the remote reports them.
	// Fetched alongside content on every add or modify, so the stored grant
	// rows track the remote permission state.
	Grants(ctx context.Context, fileID string) ([]domain.AccessGrant, error)

	// Close releases resources.
	Close() error
}

// ChangeFeedFactory creates a change feed for a source.
type ChangeFeedFactory interface {
	// Create builds a feed from the source's type and configuration.
	Create(ctx context.Context, source domain.Source) (ChangeFeed, error)
}

// Extractor converts a remote file into plain text. Extraction is treated
// as a pure, potentially slow, potentially failing function; its errors are
// file-level failures, not fatal to a batch.
type Extractor interface {
	// Extract fetches and converts the file's content.
	Extract(ctx context.Context, sourceID, fileID, filename string) (string, error)
}

// Directory resolves group membership for the permission materialiser.
type Directory interface {
	// ResolveGroup returns the direct members of a group, split into user
	// and nested group IDs. Nested expansion (with depth cap and cycle
	// rejection) is the materialiser's concern.
	ResolveGroup(ctx context.Context, groupID string) (*domain.GroupMembers, error)
}
