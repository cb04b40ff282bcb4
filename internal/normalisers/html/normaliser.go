// Package html strips HTML markup down to readable text.
package html

import (
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the filename extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// Normalise removes HTML tags and extracts readable text content.
func (n *Normaliser) Normalise(text string) string {
	// Remove script, style, noscript, head, and svg tags entirely
	text = scriptTag.ReplaceAllString(text, "")
	text = styleTag.ReplaceAllString(text, "")
	text = noscriptTag.ReplaceAllString(text, "")
	text = headTag.ReplaceAllString(text, "")
	text = svgTag.ReplaceAllString(text, "")

	// Remove HTML comments
	text = htmlComments.ReplaceAllString(text, "")

	// Add newlines around block elements for readability
	text = openBlockElements.ReplaceAllString(text, "\n")
	text = blockElements.ReplaceAllString(text, "\n")

	// Convert <br> and <hr> to newlines
	text = brTags.ReplaceAllString(text, "\n")
	text = hrTags.ReplaceAllString(text, "\n")

	// Strip all remaining HTML tags
	text = allTags.ReplaceAllString(text, "")

	// Decode HTML entities
	text = html.UnescapeString(text)

	// Collapse multiple spaces (but preserve newlines)
	text = multiSpaces.ReplaceAllString(text, " ")

	// Collapse multiple newlines
	text = multiNewlines.ReplaceAllString(text, "\n\n")

	// Trim each line and remove empty lines
	lines := strings.Split(text, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
