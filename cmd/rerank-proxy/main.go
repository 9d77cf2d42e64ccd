package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rerank-proxy/internal/config"
	logpkg "github.com/kailas-cloud/rerank-proxy/internal/logger"
	"github.com/kailas-cloud/rerank-proxy/internal/metrics"
	chiTransport "github.com/kailas-cloud/rerank-proxy/internal/transport/chi"
	"github.com/kailas-cloud/rerank-proxy/internal/transport/tei"
	healthuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/rerank"
	"github.com/kailas-cloud/rerank-proxy/internal/version"
)

func main() {
	// .env is optional; real environment variables take precedence.
	dotenvErr := godotenv.Load()

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

	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		logger.Warn("Failed to load .env file", zap.Error(dotenvErr))
	}

	metrics.RegisterHTTPMetrics()
	metrics.RegisterRerankMetrics()

	backend := tei.NewClient(&tei.Config{
		Host:    cfg.Backend.Host,
		Port:    cfg.Backend.Port,
		Path:    cfg.Backend.Path,
		Timeout: cfg.Backend.Timeout(),
		Logger:  logger,
	})

	logger.Info("Starting rerank proxy",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.String("env", env),
		zap.String("listen_addr", cfg.HTTP.Addr()),
		zap.String("backend_url", backend.URL()),
		zap.Duration("backend_timeout", cfg.Backend.Timeout()),
	)

	rerankSvc := rerankuc.New(backend)
	healthSvc := healthuc.New(backend)

	server := chiTransport.NewServer(rerankSvc, healthSvc, logger).
		WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
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

	logger.Info("Server stopped gracefully")
}
