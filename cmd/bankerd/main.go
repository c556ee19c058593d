// bankerd runs a localbanker instance as a sidecar daemon, exposing the
// budget cache over an HTTP admin API plus prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker"
	"github.com/bidstream-io/localbanker/internal/config"
	"github.com/bidstream-io/localbanker/internal/domain"
	logpkg "github.com/bidstream-io/localbanker/internal/logger"
	"github.com/bidstream-io/localbanker/internal/metrics"
	"github.com/bidstream-io/localbanker/internal/transport/httpapi"
	"github.com/bidstream-io/localbanker/internal/version"
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

	logger.Info("Starting bankerd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("ledger_url", cfg.Ledger.BaseURL),
		zap.String("role", cfg.Banker.Role),
		zap.String("account_suffix", cfg.Banker.AccountSuffix),
	)

	banker, err := buildBanker(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create banker", zap.Error(err))
	}

	banker.Start()
	defer banker.Shutdown()

	server := httpapi.NewServer(banker, logger)

	r := chi.NewRouter()
	r.Use(httpapi.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(httpapi.WideEvent(logger))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildBanker assembles the library options from the daemon config.
func buildBanker(cfg config.Config, logger *zap.Logger) (*localbanker.Banker, error) {
	opts := []localbanker.Option{
		localbanker.WithLogger(logger),
		localbanker.WithPrometheus(prometheus.DefaultRegisterer),
		localbanker.WithRequestTimeout(time.Duration(cfg.Ledger.TimeoutMs) * time.Millisecond),
		localbanker.WithMaxConnections(cfg.Ledger.MaxConnections),
	}
	if cfg.Banker.SpendRateMicros > 0 {
		opts = append(opts, localbanker.WithSpendRate(localbanker.MicroUSD(cfg.Banker.SpendRateMicros)))
	}
	if cfg.Banker.Debug {
		opts = append(opts, localbanker.WithDebug())
	}
	if cfg.Banker.ReauthorizeIntervalMs > 0 {
		opts = append(opts, localbanker.WithReauthorizeInterval(
			time.Duration(cfg.Banker.ReauthorizeIntervalMs)*time.Millisecond))
	}
	if cfg.Banker.SpendUpdateIntervalMs > 0 {
		opts = append(opts, localbanker.WithSpendUpdateInterval(
			time.Duration(cfg.Banker.SpendUpdateIntervalMs)*time.Millisecond))
	}
	if cfg.Banker.RegisterIntervalMs > 0 {
		opts = append(opts, localbanker.WithRegisterInterval(
			time.Duration(cfg.Banker.RegisterIntervalMs)*time.Millisecond))
	}
	if cfg.Journal.Addr != "" {
		opts = append(opts,
			localbanker.WithSpendJournal(cfg.Journal.Addr, cfg.Journal.Password),
			localbanker.WithSpendJournalTTL(time.Duration(cfg.Journal.TTLHours)*time.Hour),
		)
	}

	return localbanker.New(
		cfg.Ledger.BaseURL,
		domain.Role(cfg.Banker.Role),
		cfg.Banker.AccountSuffix,
		opts...,
	)
}
