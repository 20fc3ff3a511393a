// Package embedding owns the embedding model lifecycle: one-time
// initialization, batch embedding with normalization, token budget
// enforcement, and instrumentation around the raw provider transport.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// DefaultBatchSize is the chunk size used when the caller passes none.
const DefaultBatchSize = 32

// probeText is embedded once during initialization to verify the model
// answers and to learn its output dimension.
const probeText = "embedding model readiness probe"

// Model is the embedding model front. It guards initialization so
// concurrent first callers load the model exactly once, records the
// output dimension, and exposes batch embedding with optional L2
// normalization. After a successful Initialize the model is shared
// read-only state; concurrent Embed calls are safe.
type Model struct {
	embedder domain.Embedder
	name     string
	logger   *zap.Logger

	initOnce sync.Once
	initErr  error
	dims     int
}

// NewModel creates an uninitialized model front over an embedder chain.
func NewModel(embedder domain.Embedder, name string, logger *zap.Logger) *Model {
	return &Model{
		embedder: embedder,
		name:     name,
		logger:   logger,
	}
}

// Initialize loads the model exactly once. Concurrent first callers are
// serialized; later calls return the recorded outcome. A failed load is
// sticky: the model never silently substitutes zero vectors, callers get
// ErrModelUnavailable until the process is restarted with a working model.
func (m *Model) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.probe(ctx)
	})
	return m.initErr
}

func (m *Model) probe(ctx context.Context) error {
	res, err := m.embedder.Embed(ctx, probeText)
	if err != nil {
		if !errors.Is(err, domain.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
		}
		return fmt.Errorf("initialize embedding model %q: %w", m.name, err)
	}
	if len(res.Embedding) == 0 {
		return fmt.Errorf("initialize embedding model %q: %w: empty probe vector", m.name, domain.ErrModelUnavailable)
	}

	m.dims = len(res.Embedding)
	m.logger.Info("Embedding model ready",
		zap.String("model", m.name),
		zap.Int("dimensions", m.dims),
	)
	return nil
}

// Name returns the configured model name.
func (m *Model) Name() string { return m.name }

// Dimensions returns the output dimension D, 0 before initialization.
func (m *Model) Dimensions() int { return m.dims }

// EmbedTexts returns one vector of dimension D per input text, processed
// in chunks of batchSize (DefaultBatchSize when <= 0). When normalize is
// true every vector is scaled to unit L2 norm so dot product equals
// cosine similarity downstream.
func (m *Model) EmbedTexts(ctx context.Context, texts []string, batchSize int, normalize bool) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed texts: %w: empty input", domain.ErrValidation)
	}
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += batchSize {
		end := min(offset+batchSize, len(texts))

		res, err := m.batchEmbed(ctx, texts[offset:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts (chunk at %d): %w", offset, err)
		}
		if len(res.Embeddings) != end-offset {
			return nil, fmt.Errorf("embed texts: %w: got %d vectors for %d texts",
				domain.ErrModelUnavailable, len(res.Embeddings), end-offset)
		}
		out = append(out, res.Embeddings...)
	}

	for _, v := range out {
		if len(v) != m.dims {
			return nil, fmt.Errorf("embed texts: %w: dimension %d, expected %d",
				domain.ErrModelUnavailable, len(v), m.dims)
		}
		if normalize {
			domain.NormalizeL2(v)
		}
	}
	return out, nil
}

// EmbedQuery embeds a single query text and always normalizes the result.
func (m *Model) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text}, 1, true)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *Model) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := m.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, m.embedder, texts)
}
