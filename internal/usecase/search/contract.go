package search

import (
	"context"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// ArticleSource provides the filtered candidate pool from the article store.
type ArticleSource interface {
	QueryCandidates(ctx context.Context, f domain.CandidateFilter) ([]domain.Article, error)
}

// QueryEmbedder vectorizes query text into a unit-length embedding.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
