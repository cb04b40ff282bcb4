package normalisers

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-indexd/internal/normalisers/html"
	"github.com/custodia-labs/sercha-indexd/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-indexd/internal/normalisers/plaintext"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Registry selects a normaliser by filename extension.
type Registry struct {
	byExt    map[string]driven.Normaliser
	fallback driven.Normaliser
}

// NewRegistry creates a registry with the built-in normalisers. Plain
// text is the fallback for unknown extensions.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:    make(map[string]driven.Normaliser),
		fallback: plaintext.New(),
	}
	r.Register(r.fallback)
	r.Register(html.New())
	r.Register(markdown.New())
	return r
}

// Register adds a normaliser for all its extensions, replacing previous
// registrations for the same extensions.
func (r *Registry) Register(n driven.Normaliser) {
	for _, ext := range n.Extensions() {
		r.byExt[strings.ToLower(ext)] = n
	}
}

// ForFilename returns the normaliser for the file's extension.
func (r *Registry) ForFilename(filename string) driven.Normaliser {
	ext := strings.ToLower(filepath.Ext(filename))
	if n, ok := r.byExt[ext]; ok {
		return n
	}
	return r.fallback
}

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor decorates another extractor with format normalisation, so
// chunkers downstream always see plain text.
type Extractor struct {
	inner    driven.Extractor
	registry *Registry
}

// NewExtractor wraps an extractor with the registry's normalisers.
func NewExtractor(inner driven.Extractor, registry *Registry) *Extractor {
	return &Extractor{inner: inner, registry: registry}
}

// Extract fetches the file's content and normalises it by extension.
func (e *Extractor) Extract(ctx context.Context, sourceID, fileID, filename string) (string, error) {
	text, err := e.inner.Extract(ctx, sourceID, fileID, filename)
	if err != nil {
		return "", err
	}
	return e.registry.ForFilename(filename).Normalise(text), nil
}
