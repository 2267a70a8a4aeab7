package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataSource signals a corpus load failure (missing or malformed source).
	ErrDataSource = errors.New("data source error")
	// ErrInvalidQuery signals unusable user input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingService signals an embedding provider failure.
	// One attempt per call; retry policy belongs to the caller.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrIndexUnavailable signals that the vector index is unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrIndexMissing signals that the index has not been created yet.
	// Search treats this as an empty corpus, not a failure.
	ErrIndexMissing = errors.New("vector index not initialized")
	// ErrInternalConsistency signals a violated ranking invariant. Always a bug.
	ErrInternalConsistency = errors.New("internal consistency violation")
	// ErrInitInProgress signals a concurrent initialization attempt.
	ErrInitInProgress = errors.New("initialization already in progress")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// RecordError wraps a failure with the identifier of the record being
// processed, so an aborted initialization names the exact record that failed.
type RecordError struct {
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NewRecordError creates a record-scoped error.
func NewRecordError(id string, err error) error {
	return &RecordError{RecordID: id, Err: err}
}
