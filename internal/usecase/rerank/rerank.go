// Package rerank implements second-pass composite scoring: raw vector
// similarity blended with title keyword overlap and publication recency.
package rerank

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// Weights blends the three relevance signals. They must sum to 1.0.
type Weights struct {
	Similarity float64
	Title      float64
	Recency    float64
}

// DefaultWeights favors raw similarity but lets strong title matches and
// fresh articles move up the list.
var DefaultWeights = Weights{Similarity: 0.5, Title: 0.3, Recency: 0.2}

// DefaultHalfLifeDays is the linear recency decay horizon: an article
// this old contributes zero recency signal.
const DefaultHalfLifeDays = 365

const weightSumTolerance = 1e-9

// Reranker recomputes relevance for a candidate pool. It is a pure
// function of its inputs and the injected clock; identical inputs always
// produce an identical ordering.
type Reranker struct {
	weights      Weights
	halfLifeDays float64
	now          func() time.Time
	logger       *zap.Logger
}

// New creates a reranker. Weights must sum to 1.0 and the half-life must
// be positive; misconfiguration is an error here, not a silent default.
func New(w Weights, halfLifeDays float64, logger *zap.Logger) (*Reranker, error) {
	sum := w.Similarity + w.Title + w.Recency
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("%w: rerank weights must sum to 1.0, got %g", domain.ErrValidation, sum)
	}
	if w.Similarity < 0 || w.Title < 0 || w.Recency < 0 {
		return nil, fmt.Errorf("%w: rerank weights must be non-negative", domain.ErrValidation)
	}
	if halfLifeDays <= 0 {
		return nil, fmt.Errorf("%w: recency half-life must be positive, got %g", domain.ErrValidation, halfLifeDays)
	}
	return &Reranker{
		weights:      w,
		halfLifeDays: halfLifeDays,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}, nil
}

// WithClock replaces the wall clock, so recency scoring is testable
// independent of the current time.
func (r *Reranker) WithClock(now func() time.Time) *Reranker {
	r.now = now
	return r
}

// Rerank returns the top k candidates annotated with a composite
// relevance score and re-sorted by it. Ties keep the original similarity
// rank (stable sort over a similarity-ordered input). Scoring failures
// never propagate: the fallback is the similarity-ordered top k with
// relevance pinned to similarity.
func (r *Reranker) Rerank(queryText string, candidates []domain.SearchResult, topK int) (out []domain.SearchResult) {
	if len(candidates) == 0 {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("Reranking failed, falling back to similarity order",
				zap.Any("panic", p),
				zap.Int("candidates", len(candidates)),
			)
			out = similarityFallback(candidates, topK)
		}
	}()

	queryTerms := tokenize(queryText)
	now := r.now()

	out = make([]domain.SearchResult, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Relevance = r.score(queryTerms, &out[i], now)
		out[i].Reranked = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})

	return truncate(out, topK)
}

func (r *Reranker) score(queryTerms []string, c *domain.SearchResult, now time.Time) float64 {
	return r.weights.Similarity*c.Similarity +
		r.weights.Title*titleOverlap(queryTerms, c.Article.Title) +
		r.weights.Recency*r.recencyScore(c.Article.PublishedAt, now)
}

// titleOverlap = |query terms ∩ title terms| / |query terms|.
// Zero when the query has no terms.
func titleOverlap(queryTerms []string, title string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	titleTerms := make(map[string]struct{})
	for _, t := range tokenize(title) {
		titleTerms[t] = struct{}{}
	}

	matched := 0
	seen := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := titleTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// recencyScore decays linearly from 1.0 (published now) to 0 at the
// half-life horizon and floors there. A zero or unparseable publication
// time reads as "no recency signal". Future dates clamp to 1.0.
func (r *Reranker) recencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	ageDays := now.Sub(published).Hours() / 24
	if ageDays < 0 {
		return 1
	}
	score := 1 - ageDays/r.halfLifeDays
	if score < 0 {
		return 0
	}
	return score
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func similarityFallback(candidates []domain.SearchResult, topK int) []domain.SearchResult {
	out := make([]domain.SearchResult, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Relevance = out[i].Similarity
		out[i].Reranked = true
	}
	return truncate(out, topK)
}

func truncate(rs []domain.SearchResult, topK int) []domain.SearchResult {
	if topK > 0 && len(rs) > topK {
		return rs[:topK]
	}
	return rs
}
