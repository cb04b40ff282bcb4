package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalise_StripsTags(t *testing.T) {
	n := New()
	out := n.Normalise(`<html><body><p>Hello <b>world</b></p></body></html>`)
	assert.Equal(t, "Hello world", out)
}

func TestNormalise_DropsScriptsAndStyles(t *testing.T) {
	n := New()
	out := n.Normalise(`<html>
<head><title>Ignored</title></head>
<body>
<script>alert("nope")</script>
<style>p { color: red }</style>
<p>Visible text</p>
</body></html>`)

	assert.Equal(t, "Visible text", out)
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "color")
}

func TestNormalise_BlockElementsBecomeLines(t *testing.T) {
	n := New()
	out := n.Normalise(`<div>first</div><div>second</div>`)
	assert.Equal(t, "first\nsecond", out)
}

func TestNormalise_DecodesEntities(t *testing.T) {
	n := New()
	out := n.Normalise(`<p>Fish &amp; chips &lt;here&gt;</p>`)
	assert.Equal(t, "Fish & chips <here>", out)
}

func TestNormalise_RemovesComments(t *testing.T) {
	n := New()
	out := n.Normalise(`<p>kept</p><!-- dropped -->`)
	assert.Equal(t, "kept", out)
}

func TestExtensions(t *testing.T) {
	assert.Contains(t, New().Extensions(), ".html")
}
