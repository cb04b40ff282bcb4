package domain

// SearchQuery is a permission-filtered top-K similarity request.
// Exactly one of Vector or Text should be set; Text is embedded before
// searching.
type SearchQuery struct {
	// Vector is the pre-computed query embedding.
	Vector []float32

	// Text is the raw query, embedded when Vector is empty.
	Text string

	// PrincipalID is the requesting principal. Results are restricted to
	// files the principal can currently access.
	PrincipalID string

	// K is the maximum number of chunks to return (1 <= K <= configured max).
	K int

	// MinScore drops results scoring below the floor. Zero means no floor.
	MinScore float64
}

// SearchResult is one scored chunk.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Filename is the owning document's name, for citations.
	Filename string

	// Score is the cosine similarity to the query vector.
	Score float64
}

// ResultLess is the deterministic result ordering: descending score, with
// ties broken by higher word count, then lower chunk index, then lower
// file ID. Reports whether a sorts before b.
func ResultLess(a, b SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Chunk.WordCount != b.Chunk.WordCount {
		return a.Chunk.WordCount > b.Chunk.WordCount
	}
	if a.Chunk.Index != b.Chunk.Index {
		return a.Chunk.Index < b.Chunk.Index
	}
	return a.Chunk.FileID < b.Chunk.FileID
}
