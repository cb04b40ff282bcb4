package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalise_StripsHeadingsAndEmphasis(t *testing.T) {
	n := New()
	out := n.Normalise("# Title\n\nSome **bold** and *italic* text.")
	assert.Equal(t, "Title\n\nSome bold and italic text.", out)
}

func TestNormalise_DropsCodeBlocks(t *testing.T) {
	n := New()
	out := n.Normalise("before\n\n```go\nfunc main() {}\n```\n\nafter")
	assert.NotContains(t, out, "func main")
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestNormalise_KeepsLinkText(t *testing.T) {
	n := New()
	out := n.Normalise("See [the docs](https://example.com) for details.")
	assert.Equal(t, "See the docs for details.", out)
}

func TestNormalise_DropsImages(t *testing.T) {
	n := New()
	out := n.Normalise("![diagram](img.png)\ncaption")
	assert.Equal(t, "caption", out)
}

func TestNormalise_ListMarkers(t *testing.T) {
	n := New()
	out := n.Normalise("- one\n- two\n1. three")
	assert.Equal(t, "one\ntwo\nthree", out)
}

func TestExtensions(t *testing.T) {
	assert.Contains(t, New().Extensions(), ".md")
}
