package domain

import "time"

// RAGResponse is the assembled answer for a retrieval-augmented query.
// Confidence is 0 and Answer is a canned fallback whenever no candidates
// were found or generation failed.
type RAGResponse struct {
	Answer     string
	Sources    []SearchResult
	Confidence float64
	Metadata   RAGMetadata
}

// RAGMetadata carries per-request accounting for a RAG response.
type RAGMetadata struct {
	RequestID      string
	ArticlesFound  int
	SearchTimeMS   int64
	GenerateTimeMS int64
	Provider       string
	Model          string
	TokensUsed     int
	Timestamp      time.Time
	Error          string
}
