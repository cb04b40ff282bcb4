package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Default embedding gate settings.
const (
	DefaultEmbedRetries      = 3
	DefaultEmbedTimeout      = 60 * time.Second
	DefaultEmbedInitialDelay = time.Second
	DefaultEmbedMaxDelay     = 30 * time.Second
)

// EmbedGate is the typed boundary to the external embedding service.
//
// The gate owns everything the raw service does not: per-call timeouts,
// retry with exponential backoff on transient failures, rate limiting,
// batch calls with per-item fallback on partial failure, and validation
// of the returned dimensionality. Callers receive domain.TransientError
// for exhausted retries and domain.ValidationError for malformed vectors.
type EmbedGate struct {
	svc          driven.EmbeddingService
	limiter      *rate.Limiter
	retries      int
	timeout      time.Duration
	initialDelay time.Duration
	maxDelay     time.Duration
}

// GateOption configures the embedding gate.
type GateOption func(*EmbedGate)

// WithRetries sets the retry budget for transient failures.
func WithRetries(n int) GateOption {
	return func(g *EmbedGate) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// WithCallTimeout sets the per-call timeout. A timed-out call is treated
// as transient.
func WithCallTimeout(d time.Duration) GateOption {
	return func(g *EmbedGate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit caps upstream calls at rps with the given burst.
func WithRateLimit(rps float64, burst int) GateOption {
	return func(g *EmbedGate) {
		if rps > 0 && burst > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBackoff sets the initial and maximum retry delays.
func WithBackoff(initial, maximum time.Duration) GateOption {
	return func(g *EmbedGate) {
		if initial > 0 {
			g.initialDelay = initial
		}
		if maximum > 0 {
			g.maxDelay = maximum
		}
	}
}

// NewEmbedGate creates a gate in front of the given embedding service.
func NewEmbedGate(svc driven.EmbeddingService, opts ...GateOption) *EmbedGate {
	g := &EmbedGate{
		svc:          svc,
		retries:      DefaultEmbedRetries,
		timeout:      DefaultEmbedTimeout,
		initialDelay: DefaultEmbedInitialDelay,
		maxDelay:     DefaultEmbedMaxDelay,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Dimensions returns the fixed embedding dimensionality.
func (g *EmbedGate) Dimensions() int {
	return g.svc.Dimensions()
}

// Embed generates one validated embedding, retrying transient failures.
func (g *EmbedGate) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.withRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		vec, callErr = g.svc.Embed(callCtx, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if err := g.validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedAll embeds a batch of texts. The returned slices are parallel to
// texts: vectors[i] is non-nil on success, otherwise errs[i] holds the
// failure. A failed batch call falls back to embedding the items
// individually, so a partial upstream failure costs only the failed items.
func (g *EmbedGate) EmbedAll(ctx context.Context, texts []string) (vectors [][]float32, errs []error) {
	vectors = make([][]float32, len(texts))
	errs = make([]error, len(texts))
	if len(texts) == 0 {
		return vectors, errs
	}

	var batch [][]float32
	batchErr := g.withRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		batch, callErr = g.svc.EmbedBatch(callCtx, texts)
		return callErr
	})

	if batchErr == nil && len(batch) == len(texts) {
		missing := false
		for i, vec := range batch {
			if vec == nil {
				// Partial batch failure: retry the item individually.
				missing = true
				continue
			}
			if err := g.validate(vec); err != nil {
				errs[i] = err
				continue
			}
			vectors[i] = vec
		}
		if !missing {
			return vectors, errs
		}
	} else if batchErr != nil {
		logger.Warn("Batch embed failed, falling back to per-item calls: %v", batchErr)
	}

	// Per-item fallback for anything still missing.
	for i := range texts {
		if vectors[i] != nil {
			continue
		}
		if errs[i] != nil && domain.IsValidation(errs[i]) {
			continue // a malformed vector will not improve on retry
		}
		vectors[i], errs[i] = g.Embed(ctx, texts[i])
	}

	return vectors, errs
}

// Ping checks the upstream service is reachable.
func (g *EmbedGate) Ping(ctx context.Context) error {
	return g.svc.Ping(ctx)
}

// Close releases the underlying service.
func (g *EmbedGate) Close() error {
	return g.svc.Close()
}

// validate checks the vector's dimensionality against the service's fixed D.
func (g *EmbedGate) validate(vec []float32) error {
	if len(vec) != g.svc.Dimensions() {
		return domain.Validation(fmt.Errorf(
			"embedding has %d dimensions, want %d", len(vec), g.svc.Dimensions()))
	}
	return nil
}

// withRetry runs fn with a per-call timeout, retrying transient failures
// with exponential backoff until the retry budget is spent.
func (g *EmbedGate) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			delay := g.initialDelay << (attempt - 1)
			if delay > g.maxDelay {
				delay = g.maxDelay
			}
			// Jitter to half the delay so concurrent workers spread out.
			delay = delay/2 + rand.N(delay/2+1)
			logger.Debug("Retrying embed call in %s (attempt %d/%d)", delay, attempt, g.retries)
			select {
			case <-ctx.Done():
				return domain.Transient(ctx.Err())
			case <-time.After(delay):
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return domain.Transient(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		// The parent context being done ends the retry loop outright.
		if ctx.Err() != nil {
			return domain.Transient(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			continue // per-call timeout, transient
		}
		if !domain.IsTransient(err) {
			return err
		}
	}

	return domain.Transient(fmt.Errorf("embed retries exhausted: %w", lastErr))
}
