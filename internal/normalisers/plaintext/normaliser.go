// Package plaintext provides the fallback normaliser for formats that
// need no markup stripping, only whitespace cleanup.
package plaintext

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the filename extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".csv", ".json", ".yaml", ".yml", ".xml", ".toml", ".log"}
}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// Normalise cleans line endings and collapses excess blank lines.
func (n *Normaliser) Normalise(text string) string {
	// Strip a UTF-8 BOM if present.
	text = strings.TrimPrefix(text, "\uFEFF")

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
