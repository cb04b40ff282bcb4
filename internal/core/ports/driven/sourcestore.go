package driven

import (
	"context"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// SourceStore persists source registrations.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Delete removes a source.
	Delete(ctx context.Context, id string) error

	// List returns all registered sources.
	List(ctx context.Context) ([]domain.Source, error)
}

// SyncStateStore persists per-source reconciliation state. The stored
// cursor is only ever written after a batch has been durably applied.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state for a source.
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)

	// Delete removes sync state for a source.
	Delete(ctx context.Context, sourceID string) error
}
