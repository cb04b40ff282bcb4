package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/postprocessors/chunker"
)

func newSettings(t *testing.T, config string) *Settings {
	t.Helper()

	tmpDir := t.TempDir()
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(config), 0600))
	}

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	return NewSettings(store)
}

func TestSettings_Defaults(t *testing.T) {
	s := newSettings(t, "")

	assert.Equal(t, chunker.DefaultSize, s.ChunkSize())
	assert.Equal(t, chunker.DefaultOverlap, s.ChunkOverlap())
	assert.Equal(t, chunker.DefaultMinWords, s.MinWords())
	assert.Equal(t, DefaultWorkers, s.Workers())
	assert.Equal(t, DefaultExtensions, s.Extensions())
	assert.Equal(t, DefaultMaxK, s.SearchMaxK())
	assert.Zero(t, s.SearchMinScore())
	assert.False(t, s.AnonymousAccess())
	assert.Equal(t, DefaultRebuildInterval, s.RebuildInterval())
	assert.Equal(t, DefaultGroupDepth, s.GroupDepth())
	assert.Empty(t, s.OrganizationGroup())
	assert.Equal(t, "static", s.DirectoryKind())
	assert.Nil(t, s.StaticGroups())
}

func TestSettings_Overrides(t *testing.T) {
	s := newSettings(t, `
[index]
chunk_size = 200
chunk_overlap = 20
min_words = 3
workers = 8
extensions = [".md"]

[embedding]
api_key = "sk-test"
model = "text-embedding-3-large"
dimensions = 256

[search]
max_k = 50
min_score = 0.4
anonymous_access = true

[permissions]
rebuild_interval = "30s"
group_depth = 2
organization_group = "everyone"
directory = "google"
`)

	assert.Equal(t, 200, s.ChunkSize())
	assert.Equal(t, 20, s.ChunkOverlap())
	assert.Equal(t, 3, s.MinWords())
	assert.Equal(t, 8, s.Workers())
	assert.Equal(t, []string{".md"}, s.Extensions())
	assert.Equal(t, "sk-test", s.EmbeddingAPIKey())
	assert.Equal(t, "text-embedding-3-large", s.EmbeddingModel())
	assert.Equal(t, 256, s.EmbeddingDimensions())
	assert.Equal(t, 50, s.SearchMaxK())
	assert.InDelta(t, 0.4, s.SearchMinScore(), 1e-9)
	assert.True(t, s.AnonymousAccess())
	assert.Equal(t, 30*time.Second, s.RebuildInterval())
	assert.Equal(t, 2, s.GroupDepth())
	assert.Equal(t, "everyone", s.OrganizationGroup())
	assert.Equal(t, "google", s.DirectoryKind())
}

func TestSettings_InvalidRebuildIntervalFallsBack(t *testing.T) {
	s := newSettings(t, `
[permissions]
rebuild_interval = "soonish"
`)
	assert.Equal(t, DefaultRebuildInterval, s.RebuildInterval())
}

func TestSettings_StaticGroups(t *testing.T) {
	s := newSettings(t, `
[permissions]
static_groups = ["eng", "ops"]

[groups]
eng = ["alice@example.com", "bob@example.com"]
ops = ["carol@example.com"]
`)

	groups := s.StaticGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, groups["eng"])
	assert.Equal(t, []string{"carol@example.com"}, groups["ops"])
}
