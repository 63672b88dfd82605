package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/db"
	dbRedis "github.com/kailas-cloud/recall/internal/db/redis"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/source"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	budgetrepo "github.com/kailas-cloud/recall/internal/repository/budget"
	"github.com/kailas-cloud/recall/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/recall/internal/repository/index"
	quotarepo "github.com/kailas-cloud/recall/internal/repository/quota"
	searchrepo "github.com/kailas-cloud/recall/internal/repository/search"
	"github.com/kailas-cloud/recall/internal/tracing"
	chiTransport "github.com/kailas-cloud/recall/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/recall/internal/transport/openai"
	"github.com/kailas-cloud/recall/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	quotauc "github.com/kailas-cloud/recall/internal/usecase/quota"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	usageuc "github.com/kailas-cloud/recall/internal/usecase/usage"
	"github.com/kailas-cloud/recall/internal/version"
)

// Counter TTLs outlive their period so late reads still see the final value.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
	quotaTTL         = 62 * 24 * time.Hour
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

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

	logger.Info("Starting recall search API",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		ServiceName:    "recall",
		ServiceVersion: version.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Registered explicitly, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	if cfg.Index.EnsureOnStart {
		if err := ensureIndexes(ctx, store, &cfg, logger); err != nil {
			logger.Fatal("Failed to ensure source indexes", zap.Error(err))
		}
	}

	vecCfg := cfg.Embedding.Vectorizer
	provCfg := cfg.Embedding.Providers[vecCfg.Provider]
	budget := buildBudget(ctx, vecCfg.Provider, provCfg.Budget, store, cfg.Storage.KeyPrefix, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embedding.BudgetChecker
	var budgetReader usageuc.BudgetReader
	var budgetHealth healthuc.BudgetReader
	if budget != nil {
		budgetChecker, budgetReader, budgetHealth = budget, budget, budget
	}

	queryEmbedder := buildEmbedder(&cfg, store, budgetChecker, logger)
	logger.Info("Query embedder created",
		zap.String("provider", vecCfg.Provider),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	searchTuning, err := cfg.SearchTuning()
	if err != nil {
		logger.Fatal("Invalid search tuning", zap.Error(err))
	}

	quotaChecker := quotauc.NewChecker(
		quotarepo.New(store, cfg.Storage.KeyPrefix, quotaTTL),
		cfg.QuotaTuning(),
	)

	retriever := retrieval.New(searchrepo.New(store, cfg.Storage.KeyPrefix))
	searchSvc := searchuc.New(retriever, queryEmbedder, quotaChecker, searchTuning)
	usageSvc := usageuc.New(quotaChecker, budgetReader)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(queryEmbedder), budgetHealth)

	server := chiTransport.NewServer(searchSvc, usageSvc, healthSvc, cfg.RequestOptions(), logger)
	router := server.Router(cfg.Auth.Identities())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", addr),
			zap.Int("api_keys", len(cfg.Auth.APIKeys)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func ensureIndexes(ctx context.Context, store db.IndexManager, cfg *config.Config, logger *zap.Logger) error {
	boot := indexrepo.New(store, indexrepo.Config{
		KeyPrefix:  cfg.Storage.KeyPrefix,
		Dimensions: cfg.Embedding.Vectorizer.Dimensions,
		Distance:   db.DistanceCosine,
		Flat:       cfg.Index.Algorithm == "flat",
		HNSW: indexrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	}, logger)
	if err := boot.Ensure(ctx, source.All()); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// buildBudget returns nil when the provider has no token limits.
func buildBudget(
	ctx context.Context,
	provider string,
	bc config.BudgetConfig,
	store db.KVStore,
	keyPrefix string,
	logger *zap.Logger,
) *embedding.BudgetTracker {
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embedding.BudgetActionWarn
	if bc.Action == "reject" {
		action = embedding.BudgetActionReject
	}
	budget := embedding.NewBudgetTracker(provider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, logger)
	// Loads the current counters so a restart keeps spending history.
	return budget.WithStore(ctx, budgetrepo.New(store, keyPrefix, budgetDailyTTL, budgetMonthlyTTL))
}

// buildEmbedder assembles the query chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	cfg *config.Config,
	store db.KVStore,
	budget embedding.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	vecCfg := cfg.Embedding.Vectorizer
	provCfg := cfg.Embedding.Providers[vecCfg.Provider]

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   vecCfg.Provider,
		Timeout:    time.Duration(provCfg.TimeoutMs) * time.Millisecond,
		MaxRetries: provCfg.MaxRetries,

		RequestsPerSecond: provCfg.RequestsPerSecond,
		Burst:             provCfg.Burst,
		Logger:            logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache.Enabled {
		embedder = embcache.New(base, store, embcache.Config{
			KeyPrefix:  cfg.Storage.KeyPrefix,
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			TTL:        time.Duration(cfg.Embedding.Cache.TTLHours) * time.Hour,
			Lookups:    metrics.EmbeddingCacheTotal,
		}, logger)
	}

	embedder = embedding.NewInstrumentedEmbedder(embedder, vecCfg.Provider, vecCfg.Model, budget, logger)

	// Outermost, so the cache key includes the instruction.
	if vecCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, vecCfg.QueryInstruction)
	}
	return embedder
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
