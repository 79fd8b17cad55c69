package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/config"
	"github.com/boddenberg/globalsend-bfa-go/internal/handler"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/client"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/observability"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_api_url", cfg.LedgerAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("balance_refresh", cfg.BalanceRefreshInterval),
		zap.Duration("rates_stale_after", cfg.RatesStaleAfter),
		zap.Duration("session_idle_ttl", cfg.SessionIdleTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "globalsend-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("ledger", logger)

	// --- Ledger client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	ledger := client.NewLedgerClient(httpClient, cfg.LedgerAPIURL, cb, resilienceCfg, metrics)

	// --- Sessions ---
	sessions := service.NewSessionManager(ledger, service.SessionConfig{
		BalanceRefresh:  cfg.BalanceRefreshInterval,
		RatesStaleAfter: cfg.RatesStaleAfter,
		IdleTTL:         cfg.SessionIdleTTL,
	}, metrics, logger)

	runCtx, stopSessions := context.WithCancel(context.Background())
	sessionsDone := make(chan struct{})
	go func() {
		defer close(sessionsDone)
		sessions.Run(runCtx)
	}()

	verifier := service.NewTokenVerifier(cfg.JWTSecret)

	// --- Router ---
	router := handler.NewRouter(sessions, verifier, metrics, logger, cfg.RequestTimeout)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	// Stop pollers and drop every session cache.
	stopSessions()
	<-sessionsDone

	logger.Info("server stopped")
}
