package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SelectsByExtension(t *testing.T) {
	r := NewRegistry()

	md := r.ForFilename("README.md")
	assert.Contains(t, md.Extensions(), ".md")

	htm := r.ForFilename("page.HTML")
	assert.Contains(t, htm.Extensions(), ".html")
}

func TestRegistry_FallsBackToPlaintext(t *testing.T) {
	r := NewRegistry()

	n := r.ForFilename("script.py")
	assert.Equal(t, "a\nb", n.Normalise("a\r\nb"))
}

type staticExtractor struct {
	text string
	err  error
}

func (s *staticExtractor) Extract(_ context.Context, _, _, _ string) (string, error) {
	return s.text, s.err
}

func TestExtractor_NormalisesByFilename(t *testing.T) {
	inner := &staticExtractor{text: "<p>Hello <b>there</b></p>"}
	e := NewExtractor(inner, NewRegistry())

	text, err := e.Extract(context.Background(), "s1", "f1", "page.html")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}

func TestExtractor_PropagatesErrors(t *testing.T) {
	inner := &staticExtractor{err: assert.AnError}
	e := NewExtractor(inner, NewRegistry())

	_, err := e.Extract(context.Background(), "s1", "f1", "page.html")
	assert.ErrorIs(t, err, assert.AnError)
}
