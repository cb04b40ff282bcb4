package plaintext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalise_LineEndings(t *testing.T) {
	n := New()
	assert.Equal(t, "a\nb\nc", n.Normalise("a\r\nb\rc"))
}

func TestNormalise_StripsBOM(t *testing.T) {
	n := New()
	assert.Equal(t, "content", n.Normalise("\uFEFFcontent"))
}

func TestNormalise_CollapsesBlankLines(t *testing.T) {
	n := New()
	assert.Equal(t, "a\n\nb", n.Normalise("a\n\n\n\n\nb"))
}

func TestNormalise_TrimsSurroundingWhitespace(t *testing.T) {
	n := New()
	assert.Equal(t, "text", n.Normalise("  \n text \n  "))
}
