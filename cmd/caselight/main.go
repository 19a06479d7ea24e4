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

	"github.com/caselight/caselight/internal/config"
	dbRedis "github.com/caselight/caselight/internal/db/redis"
	"github.com/caselight/caselight/internal/domain"
	logpkg "github.com/caselight/caselight/internal/logger"
	"github.com/caselight/caselight/internal/metrics"
	cacherepo "github.com/caselight/caselight/internal/repository/cache"
	documentrepo "github.com/caselight/caselight/internal/repository/document"
	chiTransport "github.com/caselight/caselight/internal/transport/chi"
	"github.com/caselight/caselight/internal/transport/duggan"
	openaiTransport "github.com/caselight/caselight/internal/transport/openai"
	healthuc "github.com/caselight/caselight/internal/usecase/health"
	searchuc "github.com/caselight/caselight/internal/usecase/search"
	"github.com/caselight/caselight/internal/version"
)

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

	logger.Info("Starting caselight API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
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

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	// AI provider clients
	llmCfg := &openaiTransport.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Dimensions:     cfg.LLM.Dimensions,
		ChatModel:      cfg.LLM.ChatModel,
		Logger:         logger,
	}
	embedder := openaiTransport.NewEmbedder(llmCfg)
	generator := openaiTransport.NewGenerator(llmCfg)

	remote := duggan.New(
		cfg.Remote.BaseURL, cfg.Remote.Index,
		time.Duration(cfg.Remote.TimeoutSec)*time.Second, logger,
	)

	// Repositories
	cacheRepo := cacherepo.New(
		store, cfg.Database.KeyPrefix,
		time.Duration(cfg.Cache.TTLSec)*time.Second, logger,
	)
	docRepo := documentrepo.New(store, cfg.Database.KeyPrefix, cfg.LLM.Dimensions)
	if err := docRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure document index", zap.Error(err))
	}

	// Use case services
	searchSvc := searchuc.New(
		cacheRepo, docRepo, remote, embedder, generatorAdapter{generator},
		searchuc.Config{
			LocalMinDocs:   cfg.Search.LocalMinDocs,
			ContextWindow:  cfg.Search.ContextWindow,
			RemoteMaxLimit: cfg.Remote.MaxLimit,
		}, logger,
	)
	healthSvc := healthuc.New(store, embedder)

	// Periodic cache sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runCacheSweep(sweepCtx, cacheRepo, time.Duration(cfg.Cache.SweepPeriodSec)*time.Second, logger)

	// Create chi server
	queryLimits := domain.QueryLimits{
		Default: cfg.Search.DefaultLimit,
		Max:     cfg.Search.MaxLimit,
	}
	server := chiTransport.NewServer(searchSvc, docRepo, healthSvc, queryLimits, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// generatorAdapter narrows the concrete stream type to the usecase contract.
type generatorAdapter struct {
	*openaiTransport.Generator
}

func (g generatorAdapter) GenerateStream(
	ctx context.Context, queryText string, docs []domain.Document,
) (searchuc.AnswerStream, error) {
	stream, err := g.Generator.GenerateStream(ctx, queryText, docs)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// runCacheSweep deletes expired cache rows on a fixed period until ctx is done.
func runCacheSweep(ctx context.Context, cache *cacherepo.Repo, period time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := cache.Sweep(ctx)
			if err != nil {
				logger.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				metrics.CacheSweepDeleted.Add(float64(deleted))
				logger.Info("cache sweep", zap.Int("deleted", deleted))
			}
		}
	}
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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
