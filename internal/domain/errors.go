package domain

import "errors"

var (
	// ErrValidation signals an empty or malformed query.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrModelUnavailable signals that the embedding model could not be loaded or reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrRetrieval signals that the article store is unreachable or returned malformed data.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrProvider signals a generation provider failure or timeout.
	ErrProvider = errors.New("generation provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)
