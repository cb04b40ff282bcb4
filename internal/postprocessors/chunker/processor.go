// Package chunker provides deterministic word-window text segmentation.
package chunker

import (
	"strings"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

// DefaultSize is the default chunk size in words.
const DefaultSize = 400

// DefaultOverlap is the default overlap between consecutive chunks in words.
const DefaultOverlap = 50

// DefaultMinWords is the minimum word count below which a chunk is dropped.
// Near-empty chunks produce low-signal vectors that pollute the index.
const DefaultMinWords = 5

// boundaryWindow bounds the backwards search for a sentence end, in words.
// A window that would otherwise cut mid-sentence snaps back to the nearest
// sentence-final word within this distance.
const boundaryWindow = 20

// Splitter segments text into overlapping word windows.
//
// Splitting is deterministic: the same text and parameters always yield the
// same chunk boundaries and indices. Re-ingestion of unchanged content
// therefore produces a byte-identical chunk set, and chunk indices are
// stable citation references.
type Splitter struct {
	size     int
	overlap  int
	minWords int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithSize sets the chunk size in words.
func WithSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in words.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithMinWords sets the minimum word count for an emitted chunk.
func WithMinWords(minWords int) Option {
	return func(s *Splitter) {
		if minWords >= 0 {
			s.minWords = minWords
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:     DefaultSize,
		overlap:  DefaultOverlap,
		minWords: DefaultMinWords,
	}

	for _, opt := range opts {
		opt(s)
	}

	// The overlap window is bounded: 0 <= overlap < size.
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}

	return s
}

// Split segments text into chunks. Indices are contiguous from 0 over the
// emitted chunks; windows under the minimum word count are dropped and do
// not leave index gaps. Interior windows prefer to end on a sentence
// boundary when one falls near the cut. FileID and Embedding are left for
// the caller.
func (s *Splitter) Split(text string) []domain.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	estimated := len(words)/(s.size-s.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	index := 0
	start := 0
	for start < len(words) {
		end := start + s.size
		if end >= len(words) {
			end = len(words)
		} else if snapped := s.sentenceEnd(words, start, end); snapped > 0 {
			end = snapped
		}

		window := words[start:end]
		if len(window) >= s.minWords {
			chunks = append(chunks, domain.Chunk{
				Index:     index,
				Text:      strings.Join(window, " "),
				WordCount: len(window),
			})
			index++
		}

		if end == len(words) {
			break
		}
		start = end - s.overlap
	}

	return chunks
}

// sentenceEnd searches backwards from end for the last sentence-final word
// within the boundary window. Returns the snapped end, or 0 when no
// boundary is found or snapping would leave the next window no room to
// advance past the overlap.
func (s *Splitter) sentenceEnd(words []string, start, end int) int {
	low := end - boundaryWindow
	if low < start {
		low = start
	}
	for i := end - 1; i >= low; i-- {
		if strings.HasSuffix(words[i], ".") {
			if i+1-start <= s.overlap {
				return 0
			}
			return i + 1
		}
	}
	return 0
}
