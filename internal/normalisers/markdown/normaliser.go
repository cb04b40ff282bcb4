// Package markdown simplifies Markdown formatting into plain text.
package markdown

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the filename extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown", ".mdown"}
}

var (
	codeBlock     = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode    = regexp.MustCompile("`[^`]+`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquote    = regexp.MustCompile(`(?m)^>\s*`)
	horizontal    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList  = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Normalise removes common markdown formatting. A simplified
// implementation that handles the common cases.
func (n *Normaliser) Normalise(text string) string {
	text = codeBlock.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "")

	// Drop images, keep link text
	text = images.ReplaceAllString(text, "")
	text = links.ReplaceAllString(text, "$1")

	text = headings.ReplaceAllString(text, "")

	// Remove bold/italic markers
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "_", " ")

	text = blockquote.ReplaceAllString(text, "")
	text = horizontal.ReplaceAllString(text, "")
	text = listMarkers.ReplaceAllString(text, "")
	text = numberedList.ReplaceAllString(text, "")
	text = multiNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
