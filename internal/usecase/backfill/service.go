// Package backfill embeds articles that are missing a vector, in
// parallel batches over a bounded worker pool. It is the offline
// counterpart of the query path and reuses the same embedding model.
package backfill

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// ArticleRepo lists and updates articles (ISP).
type ArticleRepo interface {
	ListMissingEmbeddings(ctx context.Context) ([]domain.Article, error)
	PutEmbedding(ctx context.Context, id string, vec []float32, model string) error
}

// EmbeddingModel produces normalized vectors for article text.
type EmbeddingModel interface {
	EmbedTexts(ctx context.Context, texts []string, batchSize int, normalize bool) ([][]float32, error)
	Name() string
}

// Stats summarizes one backfill run.
type Stats struct {
	Scanned  int
	Embedded int
	Failed   int
}

// Service runs embedding backfill over a fixed-size worker pool.
type Service struct {
	repo      ArticleRepo
	model     EmbeddingModel
	workers   int
	batchSize int
	logger    *zap.Logger
}

// New creates a backfill service. workers and batchSize fall back to
// sane minimums when non-positive.
func New(repo ArticleRepo, model EmbeddingModel, workers, batchSize int, logger *zap.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		repo:      repo,
		model:     model,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run embeds every article without a vector and writes the results back.
// Batches fail independently: one bad batch never aborts the run, but
// context cancellation stops scheduling new work.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	articles, err := s.repo.ListMissingEmbeddings(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list missing embeddings: %w", err)
	}
	if len(articles) == 0 {
		s.logger.Info("Backfill: nothing to embed")
		return Stats{}, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return Stats{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var embedded, failed atomic.Int64

	for offset := 0; offset < len(articles); offset += s.batchSize {
		if ctx.Err() != nil {
			failed.Add(int64(len(articles) - offset))
			break
		}

		end := min(offset+s.batchSize, len(articles))
		batch := articles[offset:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			ok := s.processBatch(ctx, batch)
			embedded.Add(int64(ok))
			failed.Add(int64(len(batch) - ok))
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(int64(len(batch)))
			s.logger.Error("Backfill: submit batch failed",
				zap.Int("offset", offset),
				zap.Error(submitErr),
			)
		}
	}
	wg.Wait()

	stats := Stats{
		Scanned:  len(articles),
		Embedded: int(embedded.Load()),
		Failed:   int(failed.Load()),
	}
	s.logger.Info("Backfill finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("embedded", stats.Embedded),
		zap.Int("failed", stats.Failed),
	)
	return stats, ctx.Err()
}

// processBatch embeds one batch and writes vectors back, returning the
// number of articles successfully updated.
func (s *Service) processBatch(ctx context.Context, batch []domain.Article) int {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = embedText(&batch[i])
	}

	vecs, err := s.model.EmbedTexts(ctx, texts, len(texts), true)
	if err != nil {
		s.logger.Error("Backfill: batch embedding failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return 0
	}

	ok := 0
	for i := range batch {
		if err := s.repo.PutEmbedding(ctx, batch[i].ID, vecs[i], s.model.Name()); err != nil {
			s.logger.Error("Backfill: write embedding failed",
				zap.String("article_id", batch[i].ID),
				zap.Error(err),
			)
			continue
		}
		ok++
	}
	return ok
}

// embedText is the canonical embedding input for an article: title plus
// the excerpt source. Must stay in sync with whatever produced the
// stored vectors, or query and corpus drift apart.
func embedText(a *domain.Article) string {
	return strings.TrimSpace(a.Title + "\n\n" + a.ExcerptSource())
}
