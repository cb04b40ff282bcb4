package driven

// Normaliser converts one document format into plain text suitable for
// chunking. Normalisers are selected by filename extension.
type Normaliser interface {
	// Extensions returns the lowercase filename extensions this
	// normaliser handles, including the leading dot.
	Extensions() []string

	// Normalise strips format markup and returns readable text.
	Normalise(text string) string
}
