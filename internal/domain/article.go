package domain

import "time"

// KeyPrefix namespaces all store keys.
const KeyPrefix = "newsrag:"

// Article is a typed news article record. It is read-only from this service's
// perspective except for the embedding fields, which the backfill job writes.
type Article struct {
	ID             string
	Title          string
	URL            string
	Source         string
	PublishedAt    time.Time
	Content        string
	Summary        string
	Categories     []string
	Keywords       []string
	Embedding      []float32
	EmbeddingModel string
}

// HasEmbedding reports whether the article carries a non-empty embedding vector.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// ExcerptSource returns the text used for excerpts and context blocks:
// the summary when present, the full content otherwise.
func (a *Article) ExcerptSource() string {
	if a.Summary != "" {
		return a.Summary
	}
	return a.Content
}

// TruncateChars cuts s to at most max characters (runes, not bytes).
func TruncateChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
