package types

import "errors"

// Domain errors shared across packages
var (
	// ErrEmbeddingProvider wraps a failure of the embedding provider; it aborts the search call.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrDimensionMismatch means the query vector and stored vectors come from different models.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEntityNotFound is returned by storage when a goal or elaboration doesn't exist
	ErrEntityNotFound = errors.New("entity not found")

	// Validation errors
	ErrMissingExternalID  = errors.New("external id is required")
	ErrMissingTitle       = errors.New("title is required")
	ErrMissingDescription = errors.New("description is required")
	ErrInvalidEntityKind  = errors.New("invalid entity kind")
)
