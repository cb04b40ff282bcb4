package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultMaxK caps how many chunks a single query may request.
const DefaultMaxK = 100

// SearchService answers permission-filtered top-K similarity queries.
//
// The permission filter is applied before scoring: only chunks of files the
// principal can currently access are considered, so no score for an
// inaccessible chunk is ever computed, let alone returned. Any internal
// failure fails closed with an error and no results.
type SearchService struct {
	documents driven.DocumentStore
	access    driven.AccessStore
	gate      *EmbedGate

	maxK             int
	minScore         float64
	includeAnonymous bool
}

// SearchOption configures the search service.
type SearchOption func(*SearchService)

// WithMaxK sets the per-query result cap.
func WithMaxK(k int) SearchOption {
	return func(s *SearchService) {
		if k > 0 {
			s.maxK = k
		}
	}
}

// WithMinScore sets the default similarity floor, applied when a query
// does not carry its own.
func WithMinScore(score float64) SearchOption {
	return func(s *SearchService) {
		if score > 0 {
			s.minScore = score
		}
	}
}

// WithAnonymousAccess also admits files behind an anonymous sharing link.
// Off by default: a principal-scoped query only sees what is shared with
// the principal or open to the whole organisation.
func WithAnonymousAccess(enabled bool) SearchOption {
	return func(s *SearchService) {
		s.includeAnonymous = enabled
	}
}

// NewSearchService creates a new search service.
func NewSearchService(
	documents driven.DocumentStore,
	access driven.AccessStore,
	gate *EmbedGate,
	opts ...SearchOption,
) *SearchService {
	s := &SearchService{
		documents: documents,
		access:    access,
		gate:      gate,
		maxK:      DefaultMaxK,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Search returns the top-K accessible chunks by cosine similarity.
// An empty slice, not an error, means the principal can access nothing
// relevant or nothing clears the score floor.
func (s *SearchService) Search(ctx context.Context, query domain.SearchQuery) ([]domain.SearchResult, error) {
	if query.PrincipalID == "" {
		return nil, fmt.Errorf("%w: principal required", domain.ErrInvalidInput)
	}
	if query.K < 1 || query.K > s.maxK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d", domain.ErrInvalidInput, s.maxK)
	}

	vector := query.Vector
	if len(vector) == 0 {
		if query.Text == "" {
			return nil, fmt.Errorf("%w: query vector or text required", domain.ErrInvalidInput)
		}
		embedded, err := s.gate.Embed(ctx, query.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		vector = embedded
	}
	if dims := s.gate.Dimensions(); len(vector) != dims {
		return nil, domain.Validation(fmt.Errorf("query vector has %d dimensions, index uses %d", len(vector), dims))
	}

	accessible, err := s.access.AccessibleFiles(ctx, query.PrincipalID, s.includeAnonymous)
	if err != nil {
		return nil, fmt.Errorf("resolve accessible files: %w", err)
	}
	if len(accessible) == 0 {
		return []domain.SearchResult{}, nil
	}

	fileIDs := make([]string, 0, len(accessible))
	for id := range accessible {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	chunks, err := s.documents.ChunksByFiles(ctx, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	minScore := query.MinScore
	if minScore <= 0 {
		minScore = s.minScore
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		score, ok := cosine(vector, chunk.Embedding)
		if !ok {
			continue
		}
		if minScore > 0 && score < minScore {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return domain.ResultLess(results[i], results[j])
	})
	if len(results) > query.K {
		results = results[:query.K]
	}

	if err := s.attachFilenames(ctx, results); err != nil {
		return nil, err
	}

	logger.Debug("Search for %s: %d candidates, %d returned", query.PrincipalID, len(chunks), len(results))
	return results, nil
}

// attachFilenames fills in the owning document's name for each result.
func (s *SearchService) attachFilenames(ctx context.Context, results []domain.SearchResult) error {
	names := make(map[string]string)
	for i := range results {
		fileID := results[i].Chunk.FileID
		name, ok := names[fileID]
		if !ok {
			doc, err := s.documents.GetDocument(ctx, fileID)
			if err != nil {
				return fmt.Errorf("get document %s: %w", fileID, err)
			}
			name = doc.Filename
			names[fileID] = name
		}
		results[i].Filename = name
	}
	return nil
}

// cosine computes cosine similarity between two equal-length vectors.
// Reports false for mismatched lengths or a zero-magnitude vector.
func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
