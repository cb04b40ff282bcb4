package file

import (
	"time"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/postprocessors/chunker"
)

// Configuration keys understood by the index.
const (
	KeyChunkSize    = "index.chunk_size"
	KeyChunkOverlap = "index.chunk_overlap"
	KeyMinWords     = "index.min_words"
	KeyWorkers      = "index.workers"
	KeyExtensions   = "index.extensions"

	KeyEmbeddingAPIKey     = "embedding.api_key"
	KeyEmbeddingModel      = "embedding.model"
	KeyEmbeddingBaseURL    = "embedding.base_url"
	KeyEmbeddingDimensions = "embedding.dimensions"

	KeySearchMaxK       = "search.max_k"
	KeySearchMinScore   = "search.min_score"
	KeyAnonymousAccess  = "search.anonymous_access"
	KeyRebuildInterval  = "permissions.rebuild_interval"
	KeyGroupDepth       = "permissions.group_depth"
	KeyOrgGroup         = "permissions.organization_group"
	KeyDirectoryKind    = "permissions.directory"
	KeyStaticGroupNames = "permissions.static_groups"
)

// Default values for settings not present in the config file.
const (
	DefaultWorkers         = 4
	DefaultMaxK            = 100
	DefaultRebuildInterval = 5 * time.Minute
	DefaultGroupDepth      = 5
	DefaultDirectoryKind   = "static"
)

// DefaultExtensions are the filename extensions indexed when the config
// does not narrow them.
var DefaultExtensions = []string{
	".txt", ".md", ".csv", ".json", ".yaml", ".yml", ".html", ".xml",
}

// Settings is a typed view over the config store with index defaults
// applied.
type Settings struct {
	store driven.ConfigStore
}

// NewSettings wraps a config store.
func NewSettings(store driven.ConfigStore) *Settings {
	return &Settings{store: store}
}

// ChunkSize returns the chunk size in words.
func (s *Settings) ChunkSize() int {
	return s.intOr(KeyChunkSize, chunker.DefaultSize)
}

// ChunkOverlap returns the overlap between consecutive chunks in words.
func (s *Settings) ChunkOverlap() int {
	return s.intOr(KeyChunkOverlap, chunker.DefaultOverlap)
}

// MinWords returns the minimum word count below which a chunk is dropped.
func (s *Settings) MinWords() int {
	return s.intOr(KeyMinWords, chunker.DefaultMinWords)
}

// Workers returns the ingestion concurrency.
func (s *Settings) Workers() int {
	return s.intOr(KeyWorkers, DefaultWorkers)
}

// Extensions returns the filename extensions to index.
func (s *Settings) Extensions() []string {
	if exts := s.store.GetStringSlice(KeyExtensions); len(exts) > 0 {
		return exts
	}
	return DefaultExtensions
}

// EmbeddingAPIKey returns the embedding provider API key.
func (s *Settings) EmbeddingAPIKey() string {
	return s.store.GetString(KeyEmbeddingAPIKey)
}

// EmbeddingModel returns the embedding model name. Empty means the
// provider default.
func (s *Settings) EmbeddingModel() string {
	return s.store.GetString(KeyEmbeddingModel)
}

// EmbeddingBaseURL returns an override for the embedding API base URL.
func (s *Settings) EmbeddingBaseURL() string {
	return s.store.GetString(KeyEmbeddingBaseURL)
}

// EmbeddingDimensions returns a dimensionality override, 0 for the model
// default.
func (s *Settings) EmbeddingDimensions() int {
	return s.store.GetInt(KeyEmbeddingDimensions)
}

// SearchMaxK returns the upper bound on requested result counts.
func (s *Settings) SearchMaxK() int {
	return s.intOr(KeySearchMaxK, DefaultMaxK)
}

// SearchMinScore returns the similarity floor below which results are
// dropped.
func (s *Settings) SearchMinScore() float64 {
	return s.store.GetFloat(KeySearchMinScore)
}

// AnonymousAccess reports whether anonymous link shares are visible to
// retrieval.
func (s *Settings) AnonymousAccess() bool {
	return s.store.GetBool(KeyAnonymousAccess)
}

// RebuildInterval returns how often the permission snapshot is rebuilt.
func (s *Settings) RebuildInterval() time.Duration {
	raw := s.store.GetString(KeyRebuildInterval)
	if raw == "" {
		return DefaultRebuildInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return DefaultRebuildInterval
	}
	return d
}

// GroupDepth returns the nested group expansion cap.
func (s *Settings) GroupDepth() int {
	return s.intOr(KeyGroupDepth, DefaultGroupDepth)
}

// OrganizationGroup returns the directory group representing the whole
// tenant. Empty disables organization link expansion to named users.
func (s *Settings) OrganizationGroup() string {
	return s.store.GetString(KeyOrgGroup)
}

// DirectoryKind selects the group directory backend: static or google.
func (s *Settings) DirectoryKind() string {
	if kind := s.store.GetString(KeyDirectoryKind); kind != "" {
		return kind
	}
	return DefaultDirectoryKind
}

// StaticGroups resolves the static directory definition: the group names
// listed under permissions.static_groups, each with its members under
// groups.<name>.
func (s *Settings) StaticGroups() map[string][]string {
	names := s.store.GetStringSlice(KeyStaticGroupNames)
	if len(names) == 0 {
		return nil
	}

	groups := make(map[string][]string, len(names))
	for _, name := range names {
		groups[name] = s.store.GetStringSlice("groups." + name)
	}
	return groups
}

func (s *Settings) intOr(key string, fallback int) int {
	if v := s.store.GetInt(key); v > 0 {
		return v
	}
	return fallback
}
