package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxSearchLimit caps the number of results a single query may request.
const MaxSearchLimit = 100

// CandidateFilter narrows the candidate set fetched from the article store.
// Zero values mean "no constraint".
type CandidateFilter struct {
	Sources    []string
	Categories []string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// IsEmpty reports whether the filter applies no constraints.
func (f CandidateFilter) IsEmpty() bool {
	return len(f.Sources) == 0 && len(f.Categories) == 0 && f.DateFrom == nil && f.DateTo == nil
}

// Matches reports whether the article passes all filter constraints.
func (f CandidateFilter) Matches(a *Article) bool {
	if len(f.Sources) > 0 && !containsFold(f.Sources, a.Source) {
		return false
	}
	if len(f.Categories) > 0 && !intersectsFold(f.Categories, a.Categories) {
		return false
	}
	if f.DateFrom != nil && a.PublishedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && a.PublishedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func intersectsFold(set, values []string) bool {
	for _, v := range values {
		if containsFold(set, v) {
			return true
		}
	}
	return false
}

// SearchQuery is a validated semantic search request.
type SearchQuery struct {
	Text           string
	Limit          int
	MinScore       float64
	Filter         CandidateFilter
	Rerank         bool
	IncludeSummary bool
}

// Validate trims the query text and checks the invariants:
// non-empty text, limit in [1, MaxSearchLimit], min score in [0, 1].
func (q *SearchQuery) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return fmt.Errorf("%w: query text is empty", ErrValidation)
	}
	if q.Limit < 1 || q.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit must be in [1, %d], got %d", ErrValidation, MaxSearchLimit, q.Limit)
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0, 1], got %g", ErrValidation, q.MinScore)
	}
	return nil
}

// SearchResult is a single scored hit. Relevance is only meaningful when
// Reranked is true; until then Similarity is the authoritative score.
type SearchResult struct {
	Article    Article
	Similarity float64
	Relevance  float64
	Reranked   bool
	Excerpt    string
}

// Score returns the authoritative ranking score: the composite relevance
// when the result has been reranked, the raw cosine similarity otherwise.
func (r *SearchResult) Score() float64 {
	if r.Reranked {
		return r.Relevance
	}
	return r.Similarity
}
