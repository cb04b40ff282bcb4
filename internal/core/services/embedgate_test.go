package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

func fastGate(svc driven.EmbeddingService, opts ...GateOption) *EmbedGate {
	base := []GateOption{WithBackoff(time.Millisecond, time.Millisecond)}
	return NewEmbedGate(svc, append(base, opts...)...)
}

func TestEmbedGate_Embed(t *testing.T) {
	svc := newMockEmbedding(4)
	gate := fastGate(svc)

	vec, err := gate.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedGate_EmbedRetriesTransient(t *testing.T) {
	svc := newMockEmbedding(4)
	svc.failEmbeds = 2
	gate := fastGate(svc, WithRetries(3))

	vec, err := gate.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 3, svc.embedCalls)
}

func TestEmbedGate_EmbedExhaustsRetries(t *testing.T) {
	svc := newMockEmbedding(4)
	svc.failEmbeds = 10
	gate := fastGate(svc, WithRetries(2))

	_, err := gate.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, 3, svc.embedCalls)
}

func TestEmbedGate_EmbedDoesNotRetryPermanent(t *testing.T) {
	svc := newMockEmbedding(4)
	svc.embedErrs["bad"] = fmt.Errorf("invalid input")
	gate := fastGate(svc, WithRetries(3))

	_, err := gate.Embed(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, 1, svc.embedCalls)
}

func TestEmbedGate_EmbedRejectsWrongDimensions(t *testing.T) {
	gate := fastGate(&mismatchedEmbedding{dims: 4, produce: 3})

	_, err := gate.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	vectors, errs := gate.EmbedAll(context.Background(), []string{"one", "two"})
	for i := range vectors {
		assert.Nil(t, vectors[i])
		assert.True(t, domain.IsValidation(errs[i]))
	}
}

// mismatchedEmbedding advertises one dimensionality but produces another.
type mismatchedEmbedding struct {
	dims    int
	produce int
}

func (m *mismatchedEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, m.produce), nil
}

func (m *mismatchedEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.produce)
	}
	return out, nil
}

func (m *mismatchedEmbedding) Dimensions() int              { return m.dims }
func (m *mismatchedEmbedding) ModelName() string            { return "mismatched" }
func (m *mismatchedEmbedding) Ping(_ context.Context) error { return nil }
func (m *mismatchedEmbedding) Close() error                 { return nil }

func TestEmbedGate_EmbedAllUsesBatch(t *testing.T) {
	svc := newMockEmbedding(4)
	gate := fastGate(svc)

	vectors, errs := gate.EmbedAll(context.Background(), []string{"one", "two", "three"})
	require.Len(t, vectors, 3)
	for i := range vectors {
		assert.NoError(t, errs[i])
		assert.Len(t, vectors[i], 4)
	}
	assert.Equal(t, 1, svc.batchCalls)
	assert.Equal(t, 0, svc.embedCalls)
}

func TestEmbedGate_EmbedAllFallsBackPerItem(t *testing.T) {
	svc := newMockEmbedding(4)
	svc.batchErr = fmt.Errorf("batch endpoint down")
	gate := fastGate(svc, WithRetries(0))

	vectors, errs := gate.EmbedAll(context.Background(), []string{"one", "two"})
	for i := range vectors {
		assert.NoError(t, errs[i])
		assert.Len(t, vectors[i], 4)
	}
	assert.Equal(t, 2, svc.embedCalls)
}

func TestEmbedGate_EmbedAllRetriesMissingBatchItems(t *testing.T) {
	svc := newMockEmbedding(4)
	svc.batchFn = func(texts []string) ([][]float32, error) {
		// Second item comes back empty; the gate should fetch it alone.
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if i == 1 {
				continue
			}
			out[i] = svc.vector(text)
		}
		return out, nil
	}
	gate := fastGate(svc)

	vectors, errs := gate.EmbedAll(context.Background(), []string{"one", "two", "three"})
	for i := range vectors {
		require.NoError(t, errs[i])
		assert.Len(t, vectors[i], 4)
	}
	assert.Equal(t, 1, svc.batchCalls)
	assert.Equal(t, 1, svc.embedCalls)
}

func TestEmbedGate_EmbedAllEmpty(t *testing.T) {
	svc := newMockEmbedding(4)
	gate := fastGate(svc)

	vectors, errs := gate.EmbedAll(context.Background(), nil)
	assert.Empty(t, vectors)
	assert.Empty(t, errs)
	assert.Equal(t, 0, svc.batchCalls)
}
