package newsrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	generator Generator

	searchLimit     int
	searchMinScore  float64
	overFetch       int
	rerankWeights   [3]float64 // similarity, title, recency
	recencyHalfLife float64
	topK            int
	contextArticles int
	answerMaxTokens int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance.
// Works against Valkey as well.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the LLM generation provider.
// Without it, Ask and Summarize return degraded answers.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithSearchDefaults sets the default result limit and minimum
// similarity score applied when a request leaves them zero.
// Defaults: limit 10, min score 0.5.
func WithSearchDefaults(limit int, minScore float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchLimit = limit
		c.searchMinScore = minScore
	})
}

// WithRerankWeights sets the composite scoring weights. They must sum
// to 1.0 or New returns an error. Defaults: 0.5 / 0.3 / 0.2.
func WithRerankWeights(similarity, title, recency float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankWeights = [3]float64{similarity, title, recency}
	})
}

// WithRecencyHalfLife sets the linear recency decay horizon in days.
// Default: 365.
func WithRecencyHalfLife(days float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.recencyHalfLife = days
	})
}

// WithRAGDefaults sets the retrieval depth, context size, and answer
// token cap for Ask and Summarize. Zero fields keep the defaults
// (top_k 5, 3 context articles, 1024 tokens).
func WithRAGDefaults(topK, contextArticles, answerMaxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.contextArticles = contextArticles
		c.answerMaxTokens = answerMaxTokens
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
