package article

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// --- Mock store ---

type mockStore struct {
	hashes  map[string]map[string]string
	scanErr error
	hsetErr error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: make(map[string]map[string]string)}
}

func (m *mockStore) put(a domain.Article) {
	m.hashes[articleKey(a.ID)] = buildHashFields(&a)
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	return m.hashes[key], nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

func embeddedArticle(id, source string, published time.Time, categories ...string) domain.Article {
	return domain.Article{
		ID:             id,
		Title:          "title " + id,
		URL:            "https://example.com/" + id,
		Source:         source,
		PublishedAt:    published,
		Content:        "content " + id,
		Categories:     categories,
		Embedding:      []float32{0.1, 0.2, 0.3},
		EmbeddingModel: "test-model",
	}
}

// --- Tests ---

func TestQueryCandidates_FiltersAndEmbeddingRequired(t *testing.T) {
	store := newMockStore()
	now := time.Now().UTC().Truncate(time.Second)

	store.put(embeddedArticle("a1", "Reuters", now, "tech"))
	store.put(embeddedArticle("a2", "BBC", now, "sports"))

	// No embedding: must never appear in the candidate set.
	noEmb := embeddedArticle("a3", "Reuters", now, "tech")
	noEmb.Embedding = nil
	store.put(noEmb)

	repo := New(store)

	got, err := repo.QueryCandidates(context.Background(), domain.CandidateFilter{
		Sources: []string{"reuters"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].ID != "a1" {
		t.Errorf("expected a1, got %s", got[0].ID)
	}
}

func TestQueryCandidates_DateRange(t *testing.T) {
	store := newMockStore()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store.put(embeddedArticle("old", "Reuters", old))
	store.put(embeddedArticle("new", "Reuters", recent))

	repo := New(store)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := repo.QueryCandidates(context.Background(), domain.CandidateFilter{DateFrom: &from})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only recent article, got %+v", got)
	}
}

func TestQueryCandidates_RoundTripsFields(t *testing.T) {
	store := newMockStore()
	published := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	a := embeddedArticle("rt", "Reuters", published, "tech", "business")
	a.Summary = "a summary"
	a.Keywords = []string{"ai", "chips"}
	store.put(a)

	repo := New(store)

	got, err := repo.QueryCandidates(context.Background(), domain.CandidateFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}

	r := got[0]
	if r.Title != a.Title || r.URL != a.URL || r.Summary != a.Summary {
		t.Errorf("fields not round-tripped: %+v", r)
	}
	if !r.PublishedAt.Equal(published) {
		t.Errorf("expected published %v, got %v", published, r.PublishedAt)
	}
	if len(r.Categories) != 2 || r.Categories[1] != "business" {
		t.Errorf("categories not round-tripped: %v", r.Categories)
	}
	if len(r.Embedding) != 3 || r.Embedding[2] != 0.3 {
		t.Errorf("embedding not round-tripped: %v", r.Embedding)
	}
	if r.EmbeddingModel != "test-model" {
		t.Errorf("embedding model not round-tripped: %q", r.EmbeddingModel)
	}
}

func TestQueryCandidates_StoreErrorWrapsRetrieval(t *testing.T) {
	store := newMockStore()
	store.scanErr = errors.New("connection refused")

	repo := New(store)

	_, err := repo.QueryCandidates(context.Background(), domain.CandidateFilter{})
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestListMissingEmbeddings(t *testing.T) {
	store := newMockStore()
	now := time.Now().UTC()

	store.put(embeddedArticle("b", "Reuters", now))
	for _, id := range []string{"c", "a"} {
		a := embeddedArticle(id, "Reuters", now)
		a.Embedding = nil
		store.put(a)
	}

	repo := New(store)

	got, err := repo.ListMissingEmbeddings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles missing embeddings, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("expected deterministic id order [a c], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestPutEmbedding(t *testing.T) {
	store := newMockStore()
	a := embeddedArticle("p1", "Reuters", time.Now().UTC())
	a.Embedding = nil
	store.put(a)

	repo := New(store)

	vec := []float32{0.5, 0.6}
	if err := repo.PutEmbedding(context.Background(), "p1", vec, "new-model"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 0.5 {
		t.Errorf("embedding not written: %v", got.Embedding)
	}
	if got.EmbeddingModel != "new-model" {
		t.Errorf("embedding model not written: %q", got.EmbeddingModel)
	}
}

func TestPutEmbedding_MissingArticle(t *testing.T) {
	repo := New(newMockStore())

	err := repo.PutEmbedding(context.Background(), "ghost", []float32{0.1}, "m")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(newMockStore())

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseHashFields_MalformedDateTolerated(t *testing.T) {
	a := parseHashFields("x", map[string]string{
		fieldTitle:       "t",
		fieldPublishedAt: "not-a-date",
	})
	if !a.PublishedAt.IsZero() {
		t.Errorf("expected zero time for malformed date, got %v", a.PublishedAt)
	}
}

func TestBytesToVector_InvalidLength(t *testing.T) {
	if v := bytesToVector("abc"); v != nil {
		t.Errorf("expected nil for invalid payload, got %v", v)
	}
	if v := bytesToVector(""); v != nil {
		t.Errorf("expected nil for empty payload, got %v", v)
	}
}
