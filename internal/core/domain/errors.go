package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a reconciliation is already running for
	// the source. Triggers are rejected rather than queued; no state changes.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrSourcePaused indicates the source is paused and will not reconcile.
	ErrSourcePaused = errors.New("source paused")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and text queries are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// TransientError wraps a failure that is expected to succeed on retry:
// network errors, timeouts, upstream throttling. Cursor and index state
// are unchanged when one is returned.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError wraps a failure caused by malformed content, such as an
// embedding of the wrong dimensionality. The affected unit is skipped and
// recorded; the batch continues.
type ValidationError struct {
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

// Validation wraps err as a ValidationError. Returns nil for a nil err.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConsistencyError records a grant referencing an unresolvable subject
// (unknown group, cyclic membership). The grant is excluded from the
// materialised snapshot and the pass continues.
type ConsistencyError struct {
	GrantID string
	Err     error
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: grant %s: %v", e.GrantID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConsistencyError) Unwrap() error { return e.Err }
