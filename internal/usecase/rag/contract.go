package rag

import (
	"context"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// Retriever runs the embed-and-search step of the pipeline.
type Retriever interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)
}

// Reranker recomputes composite relevance for a candidate pool.
// Implementations never fail; they degrade to similarity order internally.
type Reranker interface {
	Rerank(queryText string, candidates []domain.SearchResult, topK int) []domain.SearchResult
}

// Generator is the LLM provider boundary.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (domain.GenerationResult, error)
}
