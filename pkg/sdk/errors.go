package newsrag

import "github.com/kailas-cloud/newsrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrModelUnavailable       = domain.ErrModelUnavailable
	ErrRetrieval              = domain.ErrRetrieval
	ErrProvider               = domain.ErrProvider
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
)
