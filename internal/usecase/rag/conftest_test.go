package rag

import (
	"context"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

type mockRetriever struct {
	results []domain.SearchResult
	err     error
	calls   int
	lastQ   domain.SearchQuery
}

func (m *mockRetriever) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	m.calls++
	m.lastQ = q
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockReranker reverses the pool so tests can prove it ran.
type mockReranker struct {
	calls     int
	lastQuery string
}

func (m *mockReranker) Rerank(queryText string, candidates []domain.SearchResult, topK int) []domain.SearchResult {
	m.calls++
	m.lastQuery = queryText
	out := make([]domain.SearchResult, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		c.Relevance = c.Similarity
		c.Reranked = true
		out = append(out, c)
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

type mockGenerator struct {
	result     domain.GenerationResult
	err        error
	calls      int
	lastPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, _ int) (domain.GenerationResult, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.err != nil {
		return domain.GenerationResult{}, m.err
	}
	return m.result, nil
}

func scored(id string, sim float64) domain.SearchResult {
	return domain.SearchResult{
		Article: domain.Article{
			ID:      id,
			Title:   "title " + id,
			Source:  "Reuters",
			Content: "content " + id,
		},
		Similarity: sim,
	}
}
