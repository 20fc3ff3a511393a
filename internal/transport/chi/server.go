// Package chi is the HTTP transport: request decoding, sentinel error
// mapping, and the route table for the public API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chiv5 "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
	healthuc "github.com/kailas-cloud/newsrag/internal/usecase/health"
	raguc "github.com/kailas-cloud/newsrag/internal/usecase/rag"
)

// Searcher runs semantic search (consumer interface).
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)
}

// Reranker folds the over-fetched pool down to the final ranked list.
type Reranker interface {
	Rerank(queryText string, candidates []domain.SearchResult, topK int) []domain.SearchResult
}

// RAGService answers and summarizes with retrieval augmentation.
type RAGService interface {
	Query(ctx context.Context, req raguc.QueryRequest) (domain.RAGResponse, error)
	Summarize(ctx context.Context, req raguc.SummarizeRequest) (domain.RAGResponse, error)
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Defaults applied when a request omits tunable parameters.
type Defaults struct {
	SearchLimit    int
	SearchMinScore float64
}

func (d *Defaults) apply() {
	if d.SearchLimit <= 0 {
		d.SearchLimit = 10
	}
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	search        Searcher
	rerank        Reranker
	rag           RAGService
	health        HealthService
	defaults      Defaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	rerank Reranker,
	rag RAGService,
	health HealthService,
	defaults Defaults,
	logger *zap.Logger,
) *Server {
	defaults.apply()
	s := &Server{
		search:   search,
		rerank:   rerank,
		rag:      rag,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, "quota_exceeded"),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, "model_unavailable"),
		sentinelHandler(domain.ErrRetrieval, http.StatusServiceUnavailable, "retrieval_failed"),
		sentinelHandler(domain.ErrProvider, http.StatusBadGateway, "provider_error"),
	}
	return s
}

// Routes builds the route table. Middleware is attached by the caller.
func (s *Server) Routes() *chiv5.Mux {
	r := chiv5.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/v1", func(r chiv5.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/rag/query", s.handleRAGQuery)
		r.Post("/rag/summarize", s.handleSummarize)
	})
	return r
}

// handleSearch handles POST /v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	filter, err := req.filter()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaults.SearchLimit
	}
	minScore := s.defaults.SearchMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	q := domain.SearchQuery{
		Text:           req.Query,
		Limit:          limit,
		MinScore:       minScore,
		Filter:         filter,
		Rerank:         req.UseReranking,
		IncludeSummary: req.IncludeSummary,
	}

	start := time.Now()
	results, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if q.Rerank {
		results = s.rerank.Rerank(q.Text, results, limit)
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:           q.Text,
		Results:         resultsToItems(results),
		TotalResults:    len(results),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		FiltersApplied:  req.filtersApplied(),
	})
}

// handleRAGQuery handles POST /v1/rag/query.
func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.rag.Query(r.Context(), raguc.QueryRequest{
		Question:       req.Question,
		TopK:           req.TopK,
		MinScore:       req.MinScore,
		UseReranking:   req.UseReranking,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ragToResponse(&resp))
}

// handleSummarize handles POST /v1/rag/summarize.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.rag.Summarize(r.Context(), raguc.SummarizeRequest{
		Text:               req.Text,
		ContextQuery:       req.ContextQuery,
		MaxContextArticles: req.MaxContextArticles,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ragToResponse(&resp))
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]healthCheck, len(report.Checks))
	for name, c := range report.Checks {
		hc := healthCheck{Status: "ok"}
		if !c.OK {
			hc.Status = "error"
			hc.Error = c.Error
		}
		checks[name] = hc
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrModelUnavailable,
		domain.ErrRetrieval,
		domain.ErrProvider,
		domain.ErrEmbeddingQuotaExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			if errors.Is(s, domain.ErrValidation) {
				// validation details are safe and actionable for the caller
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler matching a single sentinel.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
