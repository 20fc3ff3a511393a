package newsrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/db"
	dbRedis "github.com/kailas-cloud/newsrag/internal/db/redis"
	"github.com/kailas-cloud/newsrag/internal/domain"
	articlerepo "github.com/kailas-cloud/newsrag/internal/repository/article"
	embeddinguc "github.com/kailas-cloud/newsrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/newsrag/internal/usecase/health"
	raguc "github.com/kailas-cloud/newsrag/internal/usecase/rag"
	rerankuc "github.com/kailas-cloud/newsrag/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/newsrag/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces so tests can substitute the pipeline.
type searchUseCase interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)
}

type rerankUseCase interface {
	Rerank(queryText string, candidates []domain.SearchResult, topK int) []domain.SearchResult
}

type ragUseCase interface {
	Query(ctx context.Context, req raguc.QueryRequest) (domain.RAGResponse, error)
	Summarize(ctx context.Context, req raguc.SummarizeRequest) (domain.RAGResponse, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the newsrag SDK entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	rerankSvc rerankUseCase
	ragSvc    ragUseCase
	healthSvc healthUseCase

	searchLimit    int
	searchMinScore float64

	obs *observer
}

// New creates a newsrag Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		searchLimit:     10,
		searchMinScore:  0.5,
		overFetch:       searchuc.DefaultOverFetchMultiplier,
		rerankWeights:   [3]float64{0.5, 0.3, 0.2},
		recencyHalfLife: rerankuc.DefaultHalfLifeDays,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("newsrag: database address required (use WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("newsrag: embedder required (use WithEmbedder)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("newsrag: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("newsrag: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs)
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	// Internal services log through the caller-facing observer instead.
	nop := zap.NewNop()

	model := embeddinguc.NewModel(&embedderAdapter{inner: cfg.embedder}, "external", nop)

	articles := articlerepo.New(store)
	searchSvc := searchuc.New(articles, model, cfg.overFetch, nop)

	rerankSvc, err := rerankuc.New(rerankuc.Weights{
		Similarity: cfg.rerankWeights[0],
		Title:      cfg.rerankWeights[1],
		Recency:    cfg.rerankWeights[2],
	}, cfg.recencyHalfLife, nop)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("newsrag: %w", err)
	}

	var gen raguc.Generator = &noopGenerator{}
	if cfg.generator != nil {
		gen = &generatorAdapter{inner: cfg.generator}
	}

	ragSvc := raguc.New(searchSvc, rerankSvc, gen, raguc.Options{
		DefaultTopK:        cfg.topK,
		DefaultMinScore:    cfg.searchMinScore,
		MaxContextArticles: cfg.contextArticles,
		AnswerMaxTokens:    cfg.answerMaxTokens,
	}, nop)

	return &Client{
		store:          store,
		searchSvc:      searchSvc,
		rerankSvc:      rerankSvc,
		ragSvc:         ragSvc,
		healthSvc:      healthuc.New(store, nil),
		searchLimit:    cfg.searchLimit,
		searchMinScore: cfg.searchMinScore,
		obs:            obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs a semantic search over the article corpus.
func (c *Client) Search(ctx context.Context, req SearchRequest) (hits []SearchHit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	limit := req.Limit
	if limit <= 0 {
		limit = c.searchLimit
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = c.searchMinScore
	}

	q := domain.SearchQuery{
		Text:     req.Query,
		Limit:    limit,
		MinScore: minScore,
		Filter: domain.CandidateFilter{
			Sources:    req.Sources,
			Categories: req.Categories,
			DateFrom:   req.DateFrom,
			DateTo:     req.DateTo,
		},
		Rerank:         req.Rerank,
		IncludeSummary: req.IncludeExcerpt,
	}

	results, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if q.Rerank {
		results = c.rerankSvc.Rerank(q.Text, results, limit)
	}
	return resultsToHits(results), nil
}

// Ask answers a question grounded in retrieved articles. Recoverable
// pipeline failures come back as a degraded Answer with Err set, not
// as an error; only validation fails the call.
func (c *Client) Ask(ctx context.Context, req AskRequest) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	resp, err := c.ragSvc.Query(ctx, raguc.QueryRequest{
		Question:       req.Question,
		TopK:           req.TopK,
		MinScore:       req.MinScore,
		UseReranking:   req.Rerank,
		IncludeSources: true,
		Filter: domain.CandidateFilter{
			Sources:    req.Sources,
			Categories: req.Categories,
			DateFrom:   req.DateFrom,
			DateTo:     req.DateTo,
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return responseToAnswer(&resp), nil
}

// Summarize produces a summary of the given text, augmented with
// related articles from the corpus when any clear the summary threshold.
func (c *Client) Summarize(ctx context.Context, req SummarizeRequest) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("summarize", start, err) }()

	resp, err := c.ragSvc.Summarize(ctx, raguc.SummarizeRequest{
		Text:               req.Text,
		ContextQuery:       req.ContextQuery,
		MaxContextArticles: req.MaxContextArticles,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("summarize: %w", err)
	}
	return responseToAnswer(&resp), nil
}

func resultsToHits(results []domain.SearchResult) []SearchHit {
	hits := make([]SearchHit, len(results))
	for i := range results {
		r := &results[i]
		hits[i] = SearchHit{
			ID:          r.Article.ID,
			Title:       r.Article.Title,
			URL:         r.Article.URL,
			Source:      r.Article.Source,
			PublishedAt: r.Article.PublishedAt,
			Categories:  r.Article.Categories,
			Similarity:  r.Similarity,
			Relevance:   r.Relevance,
			Reranked:    r.Reranked,
			Excerpt:     r.Excerpt,
		}
	}
	return hits
}

func responseToAnswer(r *domain.RAGResponse) Answer {
	return Answer{
		Text:           r.Answer,
		Confidence:     r.Confidence,
		Sources:        resultsToHits(r.Sources),
		RequestID:      r.Metadata.RequestID,
		ArticlesFound:  r.Metadata.ArticlesFound,
		SearchTimeMS:   r.Metadata.SearchTimeMS,
		GenerateTimeMS: r.Metadata.GenerateTimeMS,
		Model:          r.Metadata.Model,
		TokensUsed:     r.Metadata.TokensUsed,
		Err:            r.Metadata.Error,
	}
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// BatchEmbed delegates to the public BatchEmbedder when available.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter wraps the public Generator to satisfy the internal contract.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, prompt string, maxTokens int) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w: %w", domain.ErrProvider, err)
	}
	return domain.GenerationResult{
		Text:       r.Text,
		Model:      r.Model,
		Provider:   r.Provider,
		TokensUsed: r.TokensUsed,
	}, nil
}

// noopGenerator fails every call (used when no generator configured).
// The orchestrator turns the failure into a degraded answer.
type noopGenerator struct{}

func (noopGenerator) Generate(_ context.Context, _ string, _ int) (domain.GenerationResult, error) {
	return domain.GenerationResult{}, fmt.Errorf(
		"%w: generator not configured (use WithGenerator)", domain.ErrProvider,
	)
}
