package article

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// Hash field names shared with the ingestion collaborator.
const (
	fieldTitle          = "title"
	fieldURL            = "url"
	fieldSource         = "source"
	fieldPublishedAt    = "published_at"
	fieldContent        = "content"
	fieldSummary        = "summary"
	fieldCategories     = "categories"
	fieldKeywords       = "keywords"
	fieldEmbedding      = "embedding"
	fieldEmbeddingModel = "embedding_model"
)

// parseHashFields converts a flat hash map into a typed Article.
// A malformed published_at is tolerated as the zero time; downstream
// scoring treats that as "no recency signal" rather than an error.
func parseHashFields(id string, m map[string]string) domain.Article {
	a := domain.Article{
		ID:             id,
		Title:          m[fieldTitle],
		URL:            m[fieldURL],
		Source:         m[fieldSource],
		Content:        m[fieldContent],
		Summary:        m[fieldSummary],
		Categories:     parseStringList(m[fieldCategories]),
		Keywords:       parseStringList(m[fieldKeywords]),
		Embedding:      bytesToVector(m[fieldEmbedding]),
		EmbeddingModel: m[fieldEmbeddingModel],
	}
	if ts, err := time.Parse(time.RFC3339, m[fieldPublishedAt]); err == nil {
		a.PublishedAt = ts
	}
	return a
}

// buildHashFields converts an Article into a flat map for HSET.
// Used by tests and seeding tools; the service itself only writes embeddings.
func buildHashFields(a *domain.Article) map[string]string {
	m := map[string]string{
		fieldTitle:   a.Title,
		fieldURL:     a.URL,
		fieldSource:  a.Source,
		fieldContent: a.Content,
		fieldSummary: a.Summary,
	}
	if !a.PublishedAt.IsZero() {
		m[fieldPublishedAt] = a.PublishedAt.UTC().Format(time.RFC3339)
	}
	if len(a.Categories) > 0 {
		m[fieldCategories] = encodeStringList(a.Categories)
	}
	if len(a.Keywords) > 0 {
		m[fieldKeywords] = encodeStringList(a.Keywords)
	}
	if len(a.Embedding) > 0 {
		m[fieldEmbedding] = vectorToBytes(a.Embedding)
		m[fieldEmbeddingModel] = a.EmbeddingModel
	}
	return m
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func encodeStringList(v []string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
