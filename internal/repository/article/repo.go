package article

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/newsrag/internal/db"
	"github.com/kailas-cloud/newsrag/internal/domain"
)

// store is the consumer interface for articles (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo is the typed Article Store boundary. Records are parsed once here;
// everything inside the core works with domain.Article.
type Repo struct {
	store store
}

// New creates an article repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// QueryCandidates returns articles that match the filter AND carry an
// embedding vector, ready for similarity scoring. Records that cannot be
// parsed are skipped rather than failing the whole candidate set.
func (r *Repo) QueryCandidates(ctx context.Context, f domain.CandidateFilter) ([]domain.Article, error) {
	articles, err := r.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Article, 0, len(articles))
	for i := range articles {
		a := &articles[i]
		if !a.HasEmbedding() {
			continue
		}
		if !f.Matches(a) {
			continue
		}
		candidates = append(candidates, *a)
	}
	return candidates, nil
}

// ListMissingEmbeddings returns articles without an embedding vector,
// ordered by id for deterministic backfill batches.
func (r *Repo) ListMissingEmbeddings(ctx context.Context) ([]domain.Article, error) {
	articles, err := r.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	missing := make([]domain.Article, 0)
	for i := range articles {
		if !articles[i].HasEmbedding() {
			missing = append(missing, articles[i])
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].ID < missing[j].ID })
	return missing, nil
}

// Get returns a single article by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.Article, error) {
	key := articleKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("hgetall %s: %w: %w", key, domain.ErrRetrieval, err)
	}
	if len(fields) == 0 {
		return domain.Article{}, domain.ErrNotFound
	}
	return parseHashFields(id, fields), nil
}

// PutEmbedding writes the embedding vector and model name for an article.
// This is the only write path the service owns; all other article fields
// belong to the ingestion collaborator.
func (r *Repo) PutEmbedding(ctx context.Context, id string, vec []float32, model string) error {
	key := articleKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w: %w", key, domain.ErrRetrieval, err)
	}
	if !exists {
		return domain.ErrNotFound
	}

	fields := map[string]string{
		fieldEmbedding:      vectorToBytes(vec),
		fieldEmbeddingModel: model,
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w: %w", key, domain.ErrRetrieval, err)
	}
	return nil
}

func (r *Repo) scanAll(ctx context.Context) ([]domain.Article, error) {
	pattern := articleKeyPrefix + "*"
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w: %w", pattern, domain.ErrRetrieval, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w: %w", domain.ErrRetrieval, err)
	}

	articles := make([]domain.Article, 0, len(hashes))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		articles = append(articles, parseHashFields(extractArticleID(keys[i]), fields))
	}
	return articles, nil
}

var articleKeyPrefix = domain.KeyPrefix + "article:"

func articleKey(id string) string {
	return articleKeyPrefix + id
}

func extractArticleID(key string) string {
	return strings.TrimPrefix(key, articleKeyPrefix)
}
