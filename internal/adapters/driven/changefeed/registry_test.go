package changefeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/memory"
	memstore "github.com/custodia-labs/sercha-indexd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

func newTestRegistry(t *testing.T, sources ...domain.Source) *Registry {
	t.Helper()

	store := memstore.NewSourceStore()
	for _, s := range sources {
		require.NoError(t, store.Save(context.Background(), s))
	}
	return NewRegistry(store)
}

func TestRegistry_SupportedTypes(t *testing.T) {
	registry := newTestRegistry(t)
	assert.Equal(t, []string{"drive", "memory"}, registry.SupportedTypes())
}

func TestRegistry_CreateUnsupportedType(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Create(context.Background(), domain.Source{ID: "s1", Type: "carrier-pigeon"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_CreateMemoryFeed(t *testing.T) {
	registry := newTestRegistry(t)

	feed, err := registry.Create(context.Background(), domain.Source{ID: "reg-create", Type: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", feed.Type())

	// The same source yields the same scripted corpus.
	again, err := registry.Create(context.Background(), domain.Source{ID: "reg-create", Type: "memory"})
	require.NoError(t, err)
	assert.Same(t, feed, again)
}

func TestRegistry_Extract(t *testing.T) {
	source := domain.Source{ID: "reg-extract", Name: "Demo", Type: "memory"}
	registry := newTestRegistry(t, source)

	memory.Shared(source.ID).AddFile("f1", "notes.txt", "hello from memory")

	text, err := registry.Extract(context.Background(), source.ID, "f1", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello from memory", text)

	_, err = registry.Extract(context.Background(), source.ID, "missing", "gone.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_ExtractUnknownSource(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.Extract(context.Background(), "nope", "f1", "a.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_RegisterCustomBuilder(t *testing.T) {
	source := domain.Source{ID: "reg-custom", Type: "custom"}
	registry := newTestRegistry(t, source)

	scripted := memory.NewFeed()
	scripted.AddFile("f1", "a.txt", "custom content")
	registry.Register("custom", func(_ context.Context, _ domain.Source) (driven.ChangeFeed, error) {
		return scripted, nil
	})

	assert.Contains(t, registry.SupportedTypes(), "custom")

	text, err := registry.Extract(context.Background(), source.ID, "f1", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "custom content", text)

	registry.Release(source.ID)
	require.NoError(t, registry.Close())
}
