// Package rag drives the end-to-end retrieval-augmented pipeline:
// embed, retrieve, rerank, build context, generate, score confidence.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
	"github.com/kailas-cloud/newsrag/internal/metrics"
)

// Canned answers for degraded outcomes. A degraded response always has
// confidence 0 so callers can tell it apart from a grounded answer.
const (
	noResultsAnswer = "I couldn't find any relevant news articles for this question. Try rephrasing it or widening the filters."
	degradedAnswer  = "I couldn't produce an answer right now because a backing service is unavailable. Please try again later."
)

// lowEvidencePenalty discounts confidence when fewer than three sources
// back the answer.
const lowEvidencePenalty = 0.8

// Options carries the orchestrator defaults; zero fields fall back to
// the package defaults below.
type Options struct {
	DefaultTopK        int
	DefaultMinScore    float64
	SummaryMinScore    float64
	MaxContextArticles int
	AnswerMaxTokens    int
}

func (o *Options) applyDefaults() {
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = 5
	}
	if o.DefaultMinScore <= 0 {
		o.DefaultMinScore = 0.5
	}
	if o.SummaryMinScore <= 0 {
		o.SummaryMinScore = 0.3
	}
	if o.MaxContextArticles <= 0 {
		o.MaxContextArticles = 3
	}
	if o.AnswerMaxTokens <= 0 {
		o.AnswerMaxTokens = 1024
	}
}

// QueryRequest is a retrieval-augmented question.
type QueryRequest struct {
	Question       string
	TopK           int
	MinScore       *float64 // nil means "use the configured default"
	UseReranking   bool
	IncludeSources bool
	Filter         domain.CandidateFilter
}

// SummarizeRequest asks for a context-augmented summary of Text.
type SummarizeRequest struct {
	Text               string
	ContextQuery       string
	MaxContextArticles int
}

// Orchestrator wires retrieval, reranking, and generation into one flow.
// Every recoverable failure past validation becomes a degraded response;
// a request never crashes because a model or provider is down.
type Orchestrator struct {
	retriever Retriever
	reranker  Reranker
	generator Generator
	opts      Options
	logger    *zap.Logger
}

// New creates the orchestrator.
func New(retriever Retriever, reranker Reranker, generator Generator, opts Options, logger *zap.Logger) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		opts:      opts,
		logger:    logger,
	}
}

// Query answers a question grounded in retrieved articles.
//
// Validation failures are the only errors returned to the caller. An
// empty candidate pool short-circuits with a canned answer and zero
// provider calls; embedding or generation failures return a degraded
// response with the error recorded in metadata.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (domain.RAGResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}
	minScore := o.opts.DefaultMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	q := domain.SearchQuery{
		Text:     req.Question,
		Limit:    topK,
		MinScore: minScore,
		Filter:   req.Filter,
		Rerank:   req.UseReranking,
	}
	if err := q.Validate(); err != nil {
		metrics.RAGQueriesTotal.WithLabelValues("query", "invalid").Inc()
		return domain.RAGResponse{}, err
	}

	meta := domain.RAGMetadata{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}

	searchStart := time.Now()
	results, err := o.retriever.Search(ctx, q)
	meta.SearchTimeMS = time.Since(searchStart).Milliseconds()
	if err != nil {
		o.logger.Warn("RAG retrieval failed",
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
		meta.Error = err.Error()
		metrics.RAGQueriesTotal.WithLabelValues("query", "degraded").Inc()
		return degradedResponse(degradedAnswer, meta), nil
	}

	if len(results) == 0 {
		metrics.RAGQueriesTotal.WithLabelValues("query", "no_results").Inc()
		return degradedResponse(noResultsAnswer, meta), nil
	}

	final := results
	if q.Rerank {
		final = o.reranker.Rerank(q.Text, results, topK)
	} else if len(final) > topK {
		final = final[:topK]
	}
	meta.ArticlesFound = len(final)

	prompt := buildAnswerPrompt(q.Text, buildContext(final))

	genStart := time.Now()
	gen, err := o.generator.Generate(ctx, prompt, o.opts.AnswerMaxTokens)
	meta.GenerateTimeMS = time.Since(genStart).Milliseconds()
	if err != nil {
		o.logger.Warn("RAG generation failed",
			zap.String("request_id", meta.RequestID),
			zap.Int("articles", len(final)),
			zap.Error(err),
		)
		meta.Error = err.Error()
		metrics.RAGQueriesTotal.WithLabelValues("query", "degraded").Inc()
		resp := degradedResponse(degradedAnswer, meta)
		if req.IncludeSources {
			resp.Sources = final
		}
		return resp, nil
	}

	meta.Provider = gen.Provider
	meta.Model = gen.Model
	meta.TokensUsed = gen.TokensUsed

	confidence := confidenceFrom(final)
	metrics.RAGConfidence.Observe(confidence)
	metrics.RAGQueriesTotal.WithLabelValues("query", "answered").Inc()

	o.logger.Debug("RAG query answered",
		zap.String("request_id", meta.RequestID),
		zap.Int("articles", len(final)),
		zap.Float64("confidence", confidence),
		zap.Int64("search_ms", meta.SearchTimeMS),
		zap.Int64("generate_ms", meta.GenerateTimeMS),
	)

	resp := domain.RAGResponse{
		Answer:     gen.Text,
		Confidence: confidence,
		Metadata:   meta,
	}
	if req.IncludeSources {
		resp.Sources = final
	}
	return resp, nil
}

// Summarize produces a summary of the given text, augmented with up to
// MaxContextArticles related articles found through the retrieval path.
// Retrieval failures degrade to an unaugmented summary; only a failed
// generation produces the canned degraded response.
func (o *Orchestrator) Summarize(ctx context.Context, req SummarizeRequest) (domain.RAGResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		metrics.RAGQueriesTotal.WithLabelValues("summarize", "invalid").Inc()
		return domain.RAGResponse{}, fmt.Errorf("%w: text is empty", domain.ErrValidation)
	}

	maxArticles := req.MaxContextArticles
	if maxArticles <= 0 {
		maxArticles = o.opts.MaxContextArticles
	}
	query := strings.TrimSpace(req.ContextQuery)
	if query == "" {
		query = domain.TruncateChars(text, 200)
	}

	meta := domain.RAGMetadata{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}

	var contextResults []domain.SearchResult
	searchStart := time.Now()
	results, err := o.retriever.Search(ctx, domain.SearchQuery{
		Text:     query,
		Limit:    maxArticles,
		MinScore: o.opts.SummaryMinScore,
	})
	meta.SearchTimeMS = time.Since(searchStart).Milliseconds()
	if err != nil {
		// the text itself is the primary subject: summarize without context
		o.logger.Warn("Context retrieval failed, summarizing without context",
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
		meta.Error = err.Error()
	} else {
		contextResults = results
	}
	meta.ArticlesFound = len(contextResults)

	prompt := buildSummaryPrompt(text, buildContext(contextResults))

	genStart := time.Now()
	gen, err := o.generator.Generate(ctx, prompt, o.opts.AnswerMaxTokens)
	meta.GenerateTimeMS = time.Since(genStart).Milliseconds()
	if err != nil {
		o.logger.Warn("Summary generation failed",
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
		meta.Error = err.Error()
		metrics.RAGQueriesTotal.WithLabelValues("summarize", "degraded").Inc()
		return degradedResponse(degradedAnswer, meta), nil
	}

	meta.Provider = gen.Provider
	meta.Model = gen.Model
	meta.TokensUsed = gen.TokensUsed

	confidence := confidenceFrom(contextResults)
	metrics.RAGConfidence.Observe(confidence)
	metrics.RAGQueriesTotal.WithLabelValues("summarize", "answered").Inc()

	return domain.RAGResponse{
		Answer:     gen.Text,
		Sources:    contextResults,
		Confidence: confidence,
		Metadata:   meta,
	}, nil
}

// confidenceFrom is the mean similarity of the top three results, with a
// flat penalty when fewer than three back the answer.
func confidenceFrom(results []domain.SearchResult) float64 {
	n := min(3, len(results))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, r := range results[:n] {
		sum += r.Similarity
	}
	c := sum / float64(n)
	if len(results) < 3 {
		c *= lowEvidencePenalty
	}
	return c
}

func degradedResponse(answer string, meta domain.RAGMetadata) domain.RAGResponse {
	return domain.RAGResponse{
		Answer:   answer,
		Metadata: meta,
	}
}
