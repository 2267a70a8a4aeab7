package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quotedex/internal/config"
	"github.com/kailas-cloud/quotedex/internal/db"
	dbRedis "github.com/kailas-cloud/quotedex/internal/db/redis"
	"github.com/kailas-cloud/quotedex/internal/domain"
	logpkg "github.com/kailas-cloud/quotedex/internal/logger"
	"github.com/kailas-cloud/quotedex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/quotedex/internal/repository/budget"
	corpusrepo "github.com/kailas-cloud/quotedex/internal/repository/corpus"
	"github.com/kailas-cloud/quotedex/internal/repository/embcache"
	quotesrepo "github.com/kailas-cloud/quotedex/internal/repository/quotes"
	chiTransport "github.com/kailas-cloud/quotedex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/quotedex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/quotedex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/quotedex/internal/usecase/health"
	initializeuc "github.com/kailas-cloud/quotedex/internal/usecase/initialize"
	searchuc "github.com/kailas-cloud/quotedex/internal/usecase/search"
	statsuc "github.com/kailas-cloud/quotedex/internal/usecase/stats"
	"github.com/kailas-cloud/quotedex/internal/version"
)

// vectorizer is the full embedding contract the services consume.
type vectorizer interface {
	domain.Embedder
	domain.BatchEmbedder
}

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting quotedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:     cfg.Database.Addrs,
		Password:  cfg.Database.Password,
		OpTimeout: time.Duration(cfg.Database.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Load the quote corpus up front. A broken corpus is fatal at startup.
	corpus, err := corpusrepo.Load(corpusrepo.Config{
		Path:         cfg.Corpus.Path,
		MaxRecords:   cfg.Corpus.MaxRecords,
		ChunkSize:    cfg.Corpus.ChunkSize,
		ChunkOverlap: cfg.Corpus.ChunkOverlap,
	})
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("Corpus loaded",
		zap.String("path", cfg.Corpus.Path),
		zap.Int("records", corpus.Len()),
	)

	// Register Prometheus metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Single BudgetTracker shared across all embedders and the stats service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Storage.KeyPrefix, cfg.Embedding.Provider,
			budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	docEmbedder, _ := buildEmbedder(
		cfg.Embedding, cfg.Storage.KeyPrefix, cfg.Embedding.DocumentInstruction,
		store, budgetChecker, logger,
	)
	queryEmbedder, queryBase := buildEmbedder(
		cfg.Embedding, cfg.Storage.KeyPrefix, cfg.Embedding.QueryInstruction,
		store, budgetChecker, logger,
	)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	storeMetric := db.DistanceCosine
	if cfg.Index.Metric == domain.MetricL2 {
		storeMetric = db.DistanceL2
	}

	quotes := quotesrepo.New(store, quotesrepo.Config{
		KeyPrefix: cfg.Storage.KeyPrefix,
		IndexName: cfg.Index.Name,
		VectorDim: cfg.Embedding.Dimensions,
		Metric:    storeMetric,
		HNSW: quotesrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})

	// Create use case services. The gate is shared: searches hold it read-side,
	// rebuilds hold it write-side.
	gate := &initializeuc.Gate{}

	searchSvc, err := searchuc.New(quotes, queryEmbedder, gate, searchuc.Config{
		Bounds: domain.Bounds{
			MinTopK:          cfg.Search.MinTopK,
			MaxTopK:          cfg.Search.MaxTopK,
			DefaultTopK:      cfg.Search.DefaultTopK,
			DefaultThreshold: cfg.Search.DefaultThreshold,
		},
		Metric:    cfg.Index.Metric,
		VectorDim: cfg.Embedding.Dimensions,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create search service", zap.Error(err))
	}

	initSvc := initializeuc.New(quotes, corpus, docEmbedder, gate, logger).
		WithBatchSize(cfg.Index.UpsertBatchSize)

	var budgetReader statsuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	statsSvc := statsuc.New(quotes, corpus, budgetReader, statsuc.Config{
		IndexName:  cfg.Index.Name,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	healthSvc := healthuc.New(store, quotes, queryBase)

	server := chiTransport.NewServer(searchSvc, initSvc, statsSvc, healthSvc, chiTransport.ConfigSnapshot{
		EmbeddingModel:             cfg.Embedding.Model,
		Dimensions:                 cfg.Embedding.Dimensions,
		ChunkSize:                  cfg.Corpus.ChunkSize,
		ChunkOverlap:               cfg.Corpus.ChunkOverlap,
		DefaultTopK:                cfg.Search.DefaultTopK,
		MaxTopK:                    cfg.Search.MaxTopK,
		DefaultSimilarityThreshold: cfg.Search.DefaultThreshold,
		MaxRecords:                 cfg.Corpus.MaxRecords,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The base client comes back alongside the chain: decorators do not forward
// health probes, so /health talks to the provider directly.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	keyPrefix string,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) (vectorizer, *openaiEmb.Embedder) {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder vectorizer = base
	if cfg.Cache.Enabled && store != nil {
		embedder = embcache.New(base, store, embcache.Config{
			KeyPrefix: keyPrefix,
			Model:     cfg.Model,
			TTL:       time.Duration(cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, budget, logger,
	).WithMaxBatchSize(cfg.MaxBatchSize)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder, base
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]map[string]string{
						"error": {
							"code":    "internal",
							"message": "internal error",
						},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
