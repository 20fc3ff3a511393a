package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

type mockSource struct {
	articles []domain.Article
	err      error
}

func (m *mockSource) QueryCandidates(_ context.Context, f domain.CandidateFilter) ([]domain.Article, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Article, 0, len(m.articles))
	for i := range m.articles {
		if m.articles[i].HasEmbedding() && f.Matches(&m.articles[i]) {
			out = append(out, m.articles[i])
		}
	}
	return out, nil
}

type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func article(id string, published time.Time, emb ...float32) domain.Article {
	return domain.Article{
		ID:          id,
		Title:       "title " + id,
		Source:      "Reuters",
		PublishedAt: published,
		Content:     "content " + id,
		Embedding:   emb,
	}
}

func TestSearch_OrthogonalVectorsThreshold(t *testing.T) {
	now := time.Now().UTC()
	source := &mockSource{articles: []domain.Article{
		article("match", now, 1, 0),
		article("orthogonal", now, 0, 1),
	}}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	got, err := idx.Search(context.Background(), domain.SearchQuery{
		Text: "q", Limit: 10, MinScore: 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(got))
	}
	if got[0].Article.ID != "match" {
		t.Errorf("expected the aligned vector, got %s", got[0].Article.ID)
	}
	if math.Abs(got[0].Similarity-1.0) > 1e-6 {
		t.Errorf("expected similarity 1.0, got %f", got[0].Similarity)
	}
}

func TestSearch_ThresholdLaw(t *testing.T) {
	now := time.Now().UTC()
	source := &mockSource{}
	for i := 0; i < 20; i++ {
		// spread of angles between 0 and 90 degrees
		angle := float64(i) / 19 * math.Pi / 2
		source.articles = append(source.articles,
			article(fmt.Sprintf("a%02d", i), now, float32(math.Cos(angle)), float32(math.Sin(angle))))
	}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	const minScore = 0.7
	got, err := idx.Search(context.Background(), domain.SearchQuery{
		Text: "q", Limit: 100, MinScore: minScore,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected some results above threshold")
	}
	for _, r := range got {
		if r.Similarity < minScore {
			t.Errorf("result %s below min_score: %f", r.Article.ID, r.Similarity)
		}
	}
}

func TestSearch_Deterministic(t *testing.T) {
	now := time.Now().UTC()
	source := &mockSource{articles: []domain.Article{
		article("c", now, 0.9, 0.1),
		article("a", now, 0.8, 0.2),
		article("b", now, 0.95, 0.05),
	}}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	q := domain.SearchQuery{Text: "q", Limit: 10}
	first, err := idx.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := idx.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("search output not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestSearch_OrderingAndTieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// four candidates tie at similarity 1.0: newer date wins, then id
	source := &mockSource{articles: []domain.Article{
		article("tie-old", older, 1, 0),
		article("zz-tie", older, 1, 0),
		article("tie-new2", newer, 1, 0),
		article("tie-new1", newer, 1, 0),
		article("low", newer, 0.5, 0.87),
	}}

	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	got, err := idx.Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, r := range got {
		ids = append(ids, r.Article.ID)
	}

	want := []string{"tie-new1", "tie-new2", "tie-old", "zz-tie", "low"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected order %v, got %v", want, ids)
	}

	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("similarity not non-increasing at %d", i)
		}
	}
}

func TestSearch_OverFetchForRerank(t *testing.T) {
	now := time.Now().UTC()
	source := &mockSource{}
	for i := 0; i < 20; i++ {
		source.articles = append(source.articles, article(fmt.Sprintf("a%02d", i), now, 1, 0))
	}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 3, zap.NewNop())

	plain, err := idx.Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plain) != 2 {
		t.Fatalf("expected 2 results without rerank, got %d", len(plain))
	}

	pool, err := idx.Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 2, Rerank: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool) != 6 {
		t.Fatalf("expected over-fetched pool of 6, got %d", len(pool))
	}
}

func TestSearch_ValidationFailsFast(t *testing.T) {
	emb := &mockEmbedder{vector: []float32{1, 0}}
	idx := New(&mockSource{}, emb, 0, zap.NewNop())

	_, err := idx.Search(context.Background(), domain.SearchQuery{Text: "   ", Limit: 5})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("invalid query must not reach the embedder")
	}
}

func TestSearch_ModelUnavailableDistinctFromEmpty(t *testing.T) {
	idx := New(&mockSource{}, &mockEmbedder{err: domain.ErrModelUnavailable}, 0, zap.NewNop())

	_, err := idx.Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 5})
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}

	// empty store: valid empty result, no error
	got, err := New(&mockSource{}, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop()).
		Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 5})
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestSearch_StoreErrorPropagates(t *testing.T) {
	source := &mockSource{err: fmt.Errorf("scan: %w", domain.ErrRetrieval)}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	_, err := idx.Search(context.Background(), domain.SearchQuery{Text: "q", Limit: 5})
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearch_FilterApplied(t *testing.T) {
	now := time.Now().UTC()
	bbc := article("bbc1", now, 1, 0)
	bbc.Source = "BBC"
	source := &mockSource{articles: []domain.Article{article("r1", now, 1, 0), bbc}}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	got, err := idx.Search(context.Background(), domain.SearchQuery{
		Text: "q", Limit: 10,
		Filter: domain.CandidateFilter{Sources: []string{"bbc"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Article.ID != "bbc1" {
		t.Fatalf("expected only the BBC article, got %+v", got)
	}
}

func TestSearch_IncludeSummaryExcerpt(t *testing.T) {
	now := time.Now().UTC()
	a := article("long", now, 1, 0)
	a.Content = strings.Repeat("x", 2000)
	source := &mockSource{articles: []domain.Article{a}}
	idx := New(source, &mockEmbedder{vector: []float32{1, 0}}, 0, zap.NewNop())

	got, err := idx.Search(context.Background(), domain.SearchQuery{
		Text: "q", Limit: 1, IncludeSummary: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got[0].Excerpt) == 0 || len([]rune(got[0].Excerpt)) > ExcerptMaxChars {
		t.Errorf("excerpt missing or over %d chars: %d", ExcerptMaxChars, len(got[0].Excerpt))
	}
}

func TestSearchVector_ZeroNormVectorScoresZero(t *testing.T) {
	now := time.Now().UTC()
	source := &mockSource{articles: []domain.Article{article("zero", now, 0, 0)}}
	idx := New(source, &mockEmbedder{}, 0, zap.NewNop())

	got, err := idx.SearchVector(context.Background(), []float32{1, 0}, domain.CandidateFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Similarity != 0 {
		t.Fatalf("zero-norm candidate should score 0, got %+v", got)
	}
}
