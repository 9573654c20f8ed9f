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

	"github.com/verity-rag/verity/internal/config"
	"github.com/verity-rag/verity/internal/corpus"
	"github.com/verity-rag/verity/internal/domain"
	"github.com/verity-rag/verity/internal/index"
	logpkg "github.com/verity-rag/verity/internal/logger"
	"github.com/verity-rag/verity/internal/metrics"
	chiTransport "github.com/verity-rag/verity/internal/transport/chi"
	openaiEmb "github.com/verity-rag/verity/internal/transport/openai"
	rerankClient "github.com/verity-rag/verity/internal/transport/rerank"
	embeddinguc "github.com/verity-rag/verity/internal/usecase/embedding"
	healthuc "github.com/verity-rag/verity/internal/usecase/health"
	pipelineuc "github.com/verity-rag/verity/internal/usecase/pipeline"
	"github.com/verity-rag/verity/internal/version"
)

// startupTimeout bounds corpus loading plus provider readiness checks.
const startupTimeout = 2 * time.Minute

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting verity API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_source", cfg.Corpus.Source),
		zap.Int("initial_k", cfg.Retrieval.InitialK),
		zap.Int("final_cap", cfg.Retrieval.FinalCap),
		zap.Float64("score_threshold", cfg.Retrieval.ScoreThreshold),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)

	// Load the immutable corpus snapshot. Serving never touches the source
	// again; the index is the only owner of the documents.
	docs, err := loadCorpus(ctx, cfg.Corpus, logger)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	ix, err := index.New(docs)
	if err != nil {
		logger.Fatal("Failed to build vector index", zap.Error(err))
	}
	logger.Info("Vector index built",
		zap.Int("documents", ix.Len()),
		zap.Int("dimensions", ix.Dimensions()),
	)

	embedder, embHealth := buildEmbedder(cfg.Embedding, logger)
	reranker := rerankClient.NewClient(&rerankClient.Config{
		BaseURL:    cfg.Reranker.BaseURL,
		Timeout:    time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		ScoreFloor: cfg.Reranker.ScoreFloor,
		Logger:     logger,
	})

	// Startup readiness: an unreachable model is fatal here, not a
	// per-request surprise later.
	if err := embHealth.HealthCheck(ctx); err != nil {
		logger.Fatal("Embedding provider not ready",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrEmbedderUnavailable, err)))
	}
	if err := reranker.HealthCheck(ctx); err != nil {
		logger.Fatal("Rerank provider not ready",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrRerankerUnavailable, err)))
	}
	cancel()
	logger.Info("Scoring providers ready")

	pipelineSvc := pipelineuc.New(embedder, ix, reranker, pipelineuc.Config{
		InitialK:        cfg.Retrieval.InitialK,
		FinalCap:        cfg.Retrieval.FinalCap,
		Threshold:       domain.Relevance(cfg.Retrieval.ScoreThreshold),
		MaxContextBytes: cfg.Retrieval.MaxContextBytes,
	}, logger)

	healthSvc := healthuc.New(ix, embHealth, reranker)

	server := chiTransport.NewServer(pipelineSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// loadCorpus reads the snapshot from the configured source.
func loadCorpus(ctx context.Context, cfg config.CorpusConfig, logger *zap.Logger) ([]domain.Document, error) {
	switch cfg.Source {
	case "file":
		logger.Info("Loading corpus snapshot", zap.String("path", cfg.Path))
		return corpus.NewFileSource(cfg.Path).Load(ctx)
	case "redis":
		logger.Info("Loading corpus snapshot from redis",
			zap.Strings("addrs", cfg.Addrs),
			zap.String("key_prefix", cfg.KeyPrefix),
		)
		src, err := corpus.NewRedisSource(corpus.RedisConfig{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		defer src.Close()

		if err := src.Ping(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCorpusUnreadable, err)
		}
		return src.Load(ctx)
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> RateLimited -> Instruction.
// The base provider is returned separately for health checks, which must not
// consume rate-limit tokens.
func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, domain.HealthChecker) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.RateLimitRPS > 0 {
		embedder = embeddinguc.NewRateLimitedEmbedder(embedder, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}

	// Instruction prefix (outermost — applied to the query text itself)
	if cfg.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
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
