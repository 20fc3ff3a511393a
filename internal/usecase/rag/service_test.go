package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

func newOrchestrator(ret *mockRetriever, rr *mockReranker, gen *mockGenerator) *Orchestrator {
	return New(ret, rr, gen, Options{}, zap.NewNop())
}

func TestQuery_EmptyRetrievalSkipsGeneration(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{Text: "should not appear"}}
	o := newOrchestrator(&mockRetriever{}, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "anything new?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("empty retrieval must make zero provider calls, got %d", gen.calls)
	}
	if resp.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", resp.Confidence)
	}
	if resp.Answer != noResultsAnswer {
		t.Errorf("expected the canned no-results answer, got %q", resp.Answer)
	}
	if resp.Metadata.ArticlesFound != 0 {
		t.Errorf("expected 0 articles found, got %d", resp.Metadata.ArticlesFound)
	}
}

func TestQuery_GenerationFailureDegrades(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("a", 0.9)}}
	gen := &mockGenerator{err: fmt.Errorf("chat completion: %w", domain.ErrProvider)}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q", IncludeSources: true})
	if err != nil {
		t.Fatalf("provider outage must not surface as an error: %v", err)
	}
	if resp.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", resp.Confidence)
	}
	if resp.Metadata.Error == "" {
		t.Error("expected the provider error recorded in metadata")
	}
	if resp.Answer != degradedAnswer {
		t.Errorf("expected the canned degraded answer, got %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("degraded response should still carry the retrieved sources")
	}
}

func TestQuery_RetrievalFailureDegrades(t *testing.T) {
	ret := &mockRetriever{err: fmt.Errorf("embed query: %w", domain.ErrModelUnavailable)}
	gen := &mockGenerator{}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q"})
	if err != nil {
		t.Fatalf("model outage must not surface as an error: %v", err)
	}
	if resp.Confidence != 0 || resp.Metadata.Error == "" {
		t.Errorf("expected degraded response with recorded error, got %+v", resp)
	}
	if gen.calls != 0 {
		t.Errorf("no generation after failed retrieval")
	}
}

func TestQuery_ValidationPropagates(t *testing.T) {
	ret := &mockRetriever{}
	o := newOrchestrator(ret, &mockReranker{}, &mockGenerator{})

	_, err := o.Query(context.Background(), QueryRequest{Question: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if ret.calls != 0 {
		t.Errorf("invalid question must not reach retrieval")
	}
}

func TestQuery_ConfidencePenaltyWithTwoResults(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("a", 0.9), scored("b", 0.8)}}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "answer"}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(resp.Confidence-0.68) > 1e-9 {
		t.Errorf("expected confidence mean(0.9, 0.8) x 0.8 = 0.68, got %.12f", resp.Confidence)
	}
}

func TestQuery_ConfidenceUsesTopThree(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{
		scored("a", 0.9), scored("b", 0.8), scored("c", 0.7), scored("d", 0.1),
	}}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "answer"}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q", TopK: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (0.9 + 0.8 + 0.7) / 3
	if math.Abs(resp.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %f without penalty, got %f", want, resp.Confidence)
	}
}

func TestQuery_RerankingApplied(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{
		scored("a", 0.9), scored("b", 0.8), scored("c", 0.7),
	}}
	rr := &mockReranker{}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "answer"}}
	o := newOrchestrator(ret, rr, gen)

	resp, err := o.Query(context.Background(), QueryRequest{
		Question: "ai chips", TopK: 2, UseReranking: true, IncludeSources: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rr.calls != 1 || rr.lastQuery != "ai chips" {
		t.Fatalf("expected one rerank call with the question, got %d %q", rr.calls, rr.lastQuery)
	}
	if !ret.lastQ.Rerank {
		t.Errorf("retriever must be told to over-fetch for reranking")
	}
	// mock reranker reverses, so "c" leads
	if len(resp.Sources) != 2 || resp.Sources[0].Article.ID != "c" {
		t.Fatalf("expected reranked order in sources, got %+v", resp.Sources)
	}
	if !resp.Sources[0].Reranked {
		t.Errorf("reranked sources must carry relevance scores")
	}
}

func TestQuery_SourcesOnlyWhenRequested(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("a", 0.9)}}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "answer"}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Sources != nil {
		t.Errorf("sources must be omitted unless requested")
	}

	resp, err = o.Query(context.Background(), QueryRequest{Question: "q", IncludeSources: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("expected sources when requested, got %+v", resp.Sources)
	}
}

func TestQuery_ContextBlocksNumberedAndTruncated(t *testing.T) {
	long := scored("long", 0.9)
	long.Article.Content = strings.Repeat("x", 2000)
	ret := &mockRetriever{results: []domain.SearchResult{long, scored("b", 0.8)}}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "answer"}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	if _, err := o.Query(context.Background(), QueryRequest{Question: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := gen.lastPrompt
	if !strings.Contains(prompt, "[1] title long") || !strings.Contains(prompt, "[2] title b") {
		t.Errorf("expected numbered context blocks in prompt")
	}
	if strings.Contains(prompt, strings.Repeat("x", contextBlockMaxChars+1)) {
		t.Errorf("context block exceeds %d chars", contextBlockMaxChars)
	}
	if !strings.Contains(prompt, strings.Repeat("x", contextBlockMaxChars)) {
		t.Errorf("context block missing truncated content")
	}
	if !strings.Contains(prompt, "Question: q") {
		t.Errorf("prompt missing the question")
	}
}

func TestQuery_ResponseMetadata(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("a", 0.9)}}
	gen := &mockGenerator{result: domain.GenerationResult{
		Text: "answer", Model: "gpt-4o-mini", Provider: "openai", TokensUsed: 123,
	}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Query(context.Background(), QueryRequest{Question: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := resp.Metadata
	if m.RequestID == "" {
		t.Error("expected a request id")
	}
	if m.Provider != "openai" || m.Model != "gpt-4o-mini" || m.TokensUsed != 123 {
		t.Errorf("provider accounting not recorded: %+v", m)
	}
	if m.ArticlesFound != 1 {
		t.Errorf("expected 1 article found, got %d", m.ArticlesFound)
	}
	if m.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestSummarize_EmptyTextValidation(t *testing.T) {
	o := newOrchestrator(&mockRetriever{}, &mockReranker{}, &mockGenerator{})

	_, err := o.Summarize(context.Background(), SummarizeRequest{Text: "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSummarize_RetrievalFailureStillSummarizes(t *testing.T) {
	ret := &mockRetriever{err: fmt.Errorf("scan: %w", domain.ErrRetrieval)}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "summary"}}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Summarize(context.Background(), SummarizeRequest{Text: "long article body"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("summary must still be generated without context")
	}
	if resp.Answer != "summary" {
		t.Errorf("expected the generated summary, got %q", resp.Answer)
	}
	if resp.Metadata.Error == "" {
		t.Errorf("expected the retrieval error recorded in metadata")
	}
	if strings.Contains(gen.lastPrompt, "Related articles") {
		t.Errorf("prompt must not reference context that was never retrieved")
	}
}

func TestSummarize_AugmentsWithContext(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("ctx", 0.7)}}
	gen := &mockGenerator{result: domain.GenerationResult{Text: "summary"}}
	o := New(ret, &mockReranker{}, gen, Options{SummaryMinScore: 0.3, MaxContextArticles: 3}, zap.NewNop())

	resp, err := o.Summarize(context.Background(), SummarizeRequest{
		Text:         "subject text",
		ContextQuery: "related news",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.lastQ.Text != "related news" {
		t.Errorf("expected the context query used for retrieval, got %q", ret.lastQ.Text)
	}
	if ret.lastQ.MinScore != 0.3 {
		t.Errorf("expected the lower summary min_score, got %g", ret.lastQ.MinScore)
	}
	if ret.lastQ.Limit != 3 {
		t.Errorf("expected max context articles as limit, got %d", ret.lastQ.Limit)
	}
	if !strings.Contains(gen.lastPrompt, "Related articles") || !strings.Contains(gen.lastPrompt, "title ctx") {
		t.Errorf("prompt missing retrieved context")
	}
	if len(resp.Sources) != 1 {
		t.Errorf("expected context articles as sources")
	}
	// single context article: mean(0.7) x 0.8 penalty
	if math.Abs(resp.Confidence-0.56) > 1e-9 {
		t.Errorf("expected confidence 0.56, got %f", resp.Confidence)
	}
}

func TestSummarize_GenerationFailureDegrades(t *testing.T) {
	ret := &mockRetriever{results: []domain.SearchResult{scored("ctx", 0.7)}}
	gen := &mockGenerator{err: domain.ErrProvider}
	o := newOrchestrator(ret, &mockReranker{}, gen)

	resp, err := o.Summarize(context.Background(), SummarizeRequest{Text: "subject"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Confidence != 0 || resp.Answer != degradedAnswer || resp.Metadata.Error == "" {
		t.Errorf("expected degraded summary response, got %+v", resp)
	}
}
