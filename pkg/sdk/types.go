package newsrag

import "time"

// SearchRequest is a semantic search over the article corpus.
// Zero Limit and MinScore fall back to the client defaults.
type SearchRequest struct {
	Query          string
	Limit          int
	MinScore       float64
	Sources        []string
	Categories     []string
	DateFrom       *time.Time
	DateTo         *time.Time
	Rerank         bool
	IncludeExcerpt bool
}

// SearchHit is a single scored article. Relevance is only meaningful
// when Reranked is true; until then Similarity is the authoritative score.
type SearchHit struct {
	ID          string
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Categories  []string
	Similarity  float64
	Relevance   float64
	Reranked    bool
	Excerpt     string
}

// AskRequest is a retrieval-augmented question.
type AskRequest struct {
	Question string
	TopK     int
	MinScore *float64 // nil means "use the client default"
	Rerank   bool

	// Filter constraints narrow the candidate pool.
	Sources    []string
	Categories []string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// SummarizeRequest asks for a context-augmented summary of Text.
type SummarizeRequest struct {
	Text               string
	ContextQuery       string
	MaxContextArticles int
}

// Answer is the assembled response for Ask and Summarize. Confidence
// is 0 and Text is a canned fallback when retrieval found nothing or
// generation failed; Err carries the recorded failure in that case.
type Answer struct {
	Text           string
	Confidence     float64
	Sources        []SearchHit
	RequestID      string
	ArticlesFound  int
	SearchTimeMS   int64
	GenerateTimeMS int64
	Model          string
	TokensUsed     int
	Err            string
}
