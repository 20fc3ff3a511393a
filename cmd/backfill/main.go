// Command backfill embeds every stored article that is missing a
// vector. It shares the embedder chain and budget with the API server,
// so a backfill run counts against the same token limits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrag/internal/config"
	dbRedis "github.com/kailas-cloud/newsrag/internal/db/redis"
	"github.com/kailas-cloud/newsrag/internal/domain"
	logpkg "github.com/kailas-cloud/newsrag/internal/logger"
	"github.com/kailas-cloud/newsrag/internal/metrics"
	articlerepo "github.com/kailas-cloud/newsrag/internal/repository/article"
	budgetrepo "github.com/kailas-cloud/newsrag/internal/repository/budget"
	"github.com/kailas-cloud/newsrag/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/newsrag/internal/transport/openai"
	backfilluc "github.com/kailas-cloud/newsrag/internal/usecase/backfill"
	embeddinguc "github.com/kailas-cloud/newsrag/internal/usecase/embedding"
	"github.com/kailas-cloud/newsrag/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting embedding backfill",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.Int("workers", cfg.Backfill.Workers),
		zap.Int("batch_size", cfg.Backfill.BatchSize),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Cancel on SIGINT/SIGTERM so a long run can stop between batches.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()

	var budgetChecker embeddinguc.BudgetChecker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget := embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		budget.WithStore(ctx, budgetrepo.New(store))
		budgetChecker = budget
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	cached := embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		cached, cfg.Embedding.Provider, cfg.Embedding.Model, budgetChecker, logger,
	)

	var docEmbedder domain.Embedder = instrumented
	if cfg.Embedding.DocInstruction != "" {
		docEmbedder = domain.NewInstructionEmbedder(instrumented, cfg.Embedding.DocInstruction)
	}
	model := embeddinguc.NewModel(docEmbedder, cfg.Embedding.Model, logger)

	articles := articlerepo.New(store)
	svc := backfilluc.New(articles, model, cfg.Backfill.Workers, cfg.Backfill.BatchSize, logger)

	stats, err := svc.Run(ctx)
	if err != nil {
		logger.Error("Backfill interrupted", zap.Error(err))
	}
	logger.Info("Backfill stats",
		zap.Int("scanned", stats.Scanned),
		zap.Int("embedded", stats.Embedded),
		zap.Int("failed", stats.Failed),
	)

	if err != nil || stats.Failed > 0 {
		os.Exit(1)
	}
}
