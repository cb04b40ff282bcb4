// Package changefeed wires concrete change feed implementations behind
// the feed factory and extractor ports. Feeds created for polling are
// owned by the caller; feeds used for content fetching are cached per
// source and live until the registry is closed.
package changefeed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/drive"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/memory"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Ensure Registry implements the interfaces.
var (
	_ driven.ChangeFeedFactory = (*Registry)(nil)
	_ driven.Extractor         = (*Registry)(nil)
)

// Builder creates a change feed for a source.
type Builder func(ctx context.Context, source domain.Source) (driven.ChangeFeed, error)

// Fetcher is implemented by feeds that can deliver file content.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (string, error)
}

// Registry maps source types to feed builders.
type Registry struct {
	sources driven.SourceStore

	mu       sync.Mutex
	builders map[string]Builder
	fetchers map[string]driven.ChangeFeed
}

// NewRegistry creates a registry with the built-in feed types.
func NewRegistry(sources driven.SourceStore) *Registry {
	r := &Registry{
		sources:  sources,
		builders: make(map[string]Builder),
		fetchers: make(map[string]driven.ChangeFeed),
	}
	r.Register("drive", func(ctx context.Context, source domain.Source) (driven.ChangeFeed, error) {
		return drive.New(ctx, source)
	})
	r.Register("memory", func(_ context.Context, source domain.Source) (driven.ChangeFeed, error) {
		return memory.Shared(source.ID), nil
	})
	return r
}

// Register adds a feed builder for the given source type.
func (r *Registry) Register(feedType string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[feedType] = builder
}

// SupportedTypes returns all registered source types, sorted.
func (r *Registry) SupportedTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds a fresh feed for the source. The caller owns the feed and
// must close it when the sync run ends.
func (r *Registry) Create(ctx context.Context, source domain.Source) (driven.ChangeFeed, error) {
	builder, err := r.builder(source.Type)
	if err != nil {
		return nil, err
	}
	return builder(ctx, source)
}

// Extract fetches the file's text content through the source's feed.
func (r *Registry) Extract(ctx context.Context, sourceID, fileID, _ string) (string, error) {
	feed, err := r.fetcher(ctx, sourceID)
	if err != nil {
		return "", err
	}

	fetcher, ok := feed.(Fetcher)
	if !ok {
		return "", fmt.Errorf("changefeed: %s feed cannot fetch content: %w", feed.Type(), domain.ErrInvalidInput)
	}
	return fetcher.Fetch(ctx, fileID)
}

// Close shuts down all cached fetch feeds.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for sourceID, feed := range r.fetchers {
		if err := feed.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.fetchers, sourceID)
	}
	return firstErr
}

// Release closes and evicts the cached fetch feed for a source, forcing
// the next Extract to rebuild it. Called when a source's configuration
// changes.
func (r *Registry) Release(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if feed, ok := r.fetchers[sourceID]; ok {
		if err := feed.Close(); err != nil {
			logger.Warn("Closing feed for source %s: %v", sourceID, err)
		}
		delete(r.fetchers, sourceID)
	}
}

func (r *Registry) builder(feedType string) (Builder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	builder, ok := r.builders[feedType]
	if !ok {
		return nil, fmt.Errorf("changefeed: unsupported source type %q: %w", feedType, domain.ErrInvalidInput)
	}
	return builder, nil
}

// fetcher returns the cached fetch feed for a source, creating it from
// the stored source record on first use.
func (r *Registry) fetcher(ctx context.Context, sourceID string) (driven.ChangeFeed, error) {
	r.mu.Lock()
	if feed, ok := r.fetchers[sourceID]; ok {
		r.mu.Unlock()
		return feed, nil
	}
	r.mu.Unlock()

	source, err := r.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("changefeed: load source %s: %w", sourceID, err)
	}

	feed, err := r.Create(ctx, *source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.fetchers[sourceID]; ok {
		// Lost the race; keep the first feed.
		if feed != cached {
			_ = feed.Close()
		}
		return cached, nil
	}
	r.fetchers[sourceID] = feed
	return feed, nil
}
