package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// SearchService answers permission-filtered top-K similarity queries.
type SearchService interface {
	// Search returns the query's K highest-scoring chunks among files the
	// principal may currently access. An empty result is returned (not an
	// error) when the principal has no accessible files or nothing clears
	// the score floor. A failed query fails closed: no partial results.
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error)
}

// Materializer rebuilds the queryable access snapshot from raw grants.
type Materializer interface {
	// Rebuild recomputes the snapshot from currently effective grants and
	// swaps it in atomically. Returns the number of materialised entries.
	Rebuild(ctx context.Context) (int, error)

	// MarkDirty requests a rebuild on the next scheduler tick, used when a
	// grant change is observed mid-reconciliation.
	MarkDirty()

	// Run rebuilds on the given interval, and sooner when marked dirty.
	// Blocks until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration)
}
