package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

type searchRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit,omitempty"`
	MinScore       *float64 `json:"min_score,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	DateFrom       string   `json:"date_from,omitempty"`
	DateTo         string   `json:"date_to,omitempty"`
	UseReranking   bool     `json:"use_reranking,omitempty"`
	IncludeSummary bool     `json:"include_summary,omitempty"`
}

type searchResultItem struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	URL             string   `json:"url,omitempty"`
	Source          string   `json:"source,omitempty"`
	PublishedAt     *string  `json:"published_at,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	Excerpt         string   `json:"excerpt,omitempty"`
}

type searchResponse struct {
	Query           string             `json:"query"`
	Results         []searchResultItem `json:"results"`
	TotalResults    int                `json:"total_results"`
	ExecutionTimeMS int64              `json:"execution_time_ms"`
	FiltersApplied  map[string]any     `json:"filters_applied,omitempty"`
}

type ragQueryRequest struct {
	Question       string   `json:"question"`
	TopK           int      `json:"top_k,omitempty"`
	MinScore       *float64 `json:"min_score,omitempty"`
	UseReranking   bool     `json:"use_reranking,omitempty"`
	IncludeSources bool     `json:"include_sources,omitempty"`
}

type summarizeRequest struct {
	Text               string `json:"text"`
	ContextQuery       string `json:"context_query,omitempty"`
	MaxContextArticles int    `json:"max_context_articles,omitempty"`
}

type ragMetadata struct {
	RequestID      string `json:"request_id"`
	ArticlesFound  int    `json:"articles_found"`
	SearchTimeMS   int64  `json:"search_time_ms"`
	GenerateTimeMS int64  `json:"generate_time_ms"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
	Timestamp      string `json:"timestamp"`
	Error          string `json:"error,omitempty"`
}

type ragResponse struct {
	Answer     string             `json:"answer"`
	Sources    []searchResultItem `json:"sources,omitempty"`
	Confidence float64            `json:"confidence"`
	Metadata   ragMetadata        `json:"metadata"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
}

func (r *searchRequest) filter() (domain.CandidateFilter, error) {
	f := domain.CandidateFilter{
		Sources:    r.Sources,
		Categories: r.Categories,
	}
	if r.DateFrom != "" {
		t, err := parseDate(r.DateFrom)
		if err != nil {
			return f, fmt.Errorf("date_from: %w", err)
		}
		f.DateFrom = &t
	}
	if r.DateTo != "" {
		t, err := parseDate(r.DateTo)
		if err != nil {
			return f, fmt.Errorf("date_to: %w", err)
		}
		f.DateTo = &t
	}
	return f, nil
}

func (r *searchRequest) filtersApplied() map[string]any {
	out := make(map[string]any)
	if len(r.Sources) > 0 {
		out["sources"] = r.Sources
	}
	if len(r.Categories) > 0 {
		out["categories"] = r.Categories
	}
	if r.DateFrom != "" {
		out["date_from"] = r.DateFrom
	}
	if r.DateTo != "" {
		out["date_to"] = r.DateTo
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

func resultToItem(r *domain.SearchResult) searchResultItem {
	item := searchResultItem{
		ID:              r.Article.ID,
		Title:           r.Article.Title,
		URL:             r.Article.URL,
		Source:          r.Article.Source,
		SimilarityScore: r.Similarity,
		Excerpt:         r.Excerpt,
	}
	if !r.Article.PublishedAt.IsZero() {
		ts := r.Article.PublishedAt.UTC().Format(time.RFC3339)
		item.PublishedAt = &ts
	}
	if r.Reranked {
		rel := r.Relevance
		item.RelevanceScore = &rel
	}
	return item
}

func resultsToItems(rs []domain.SearchResult) []searchResultItem {
	items := make([]searchResultItem, len(rs))
	for i := range rs {
		items[i] = resultToItem(&rs[i])
	}
	return items
}

func ragToResponse(r *domain.RAGResponse) ragResponse {
	return ragResponse{
		Answer:     r.Answer,
		Sources:    resultsToItems(r.Sources),
		Confidence: r.Confidence,
		Metadata: ragMetadata{
			RequestID:      r.Metadata.RequestID,
			ArticlesFound:  r.Metadata.ArticlesFound,
			SearchTimeMS:   r.Metadata.SearchTimeMS,
			GenerateTimeMS: r.Metadata.GenerateTimeMS,
			Provider:       r.Metadata.Provider,
			Model:          r.Metadata.Model,
			TokensUsed:     r.Metadata.TokensUsed,
			Timestamp:      r.Metadata.Timestamp.UTC().Format(time.RFC3339),
			Error:          r.Metadata.Error,
		},
	}
}
