// Package search implements cosine similarity retrieval over stored
// article embeddings.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
	"github.com/kailas-cloud/newsrag/internal/metrics"
)

// DefaultOverFetchMultiplier sizes the candidate pool handed to the
// reranker relative to the requested limit.
const DefaultOverFetchMultiplier = 3

// ExcerptMaxChars caps result excerpts and context blocks.
const ExcerptMaxChars = 500

// Index scores the candidate pool against a query vector. It reads the
// article store without mutating it; scoring happens locally.
type Index struct {
	articles  ArticleSource
	embedder  QueryEmbedder
	overFetch int
	logger    *zap.Logger
}

// New creates a vector index. overFetch < 1 falls back to the default.
func New(articles ArticleSource, embedder QueryEmbedder, overFetch int, logger *zap.Logger) *Index {
	if overFetch < 1 {
		overFetch = DefaultOverFetchMultiplier
	}
	return &Index{
		articles:  articles,
		embedder:  embedder,
		overFetch: overFetch,
		logger:    logger,
	}
}

// Search validates the query, embeds its text, and retrieves scored
// candidates. When the query asks for reranking the pool is over-fetched
// (limit x multiplier) so the reranker has candidates to promote; the
// caller truncates back to the requested limit after reranking.
func (s *Index) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := q.Limit
	if q.Rerank {
		limit = q.Limit * s.overFetch
	}

	results, err := s.SearchVector(ctx, vector, q.Filter, limit, q.MinScore)
	if err != nil {
		return nil, err
	}

	if q.IncludeSummary {
		for i := range results {
			results[i].Excerpt = domain.TruncateChars(results[i].Article.ExcerptSource(), ExcerptMaxChars)
		}
	}
	return results, nil
}

// SearchVector scores the filtered candidate pool against an already
// embedded query vector. Candidates below minScore are excluded; the
// rest sort by similarity descending with deterministic tie-breaks
// (newer published_at first, then ascending id).
func (s *Index) SearchVector(
	ctx context.Context, vector []float32,
	f domain.CandidateFilter, limit int, minScore float64,
) ([]domain.SearchResult, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.articles.QueryCandidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for i := range candidates {
		sim := domain.Cosine(vector, candidates[i].Embedding)
		if sim < minScore {
			continue
		}
		results = append(results, domain.SearchResult{
			Article:    candidates[i],
			Similarity: sim,
		})
	}

	sortBySimilarity(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug("Vector search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		zap.Float64("min_score", minScore),
	)
	return results, nil
}

func sortBySimilarity(rs []domain.SearchResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := &rs[i], &rs[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
			return a.Article.PublishedAt.After(b.Article.PublishedAt)
		}
		return a.Article.ID < b.Article.ID
	})
}
