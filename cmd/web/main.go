package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

const (
	warmupTimeout = 30 * time.Second
	sweepInterval = time.Minute
	clientIdle    = 10 * time.Minute
)

// app is the fully wired HTTP side of the dashboard.
type app struct {
	handler   http.Handler
	analytics *services.Analytics
	metrics   *observability.Metrics
	limiter   *middleware.RateLimiter
}

func newApp(cfg *config.Config, logger *slog.Logger, loader services.Loader) *app {
	metrics := observability.NewMetrics()
	cache := services.NewCache(loader, cfg.Dataset.CacheTTL, logger, metrics)
	analytics := services.NewAnalytics(cache, cfg.Dataset.TopN, logger)

	srv := server.NewServer(analytics, logger, metrics.Handler())
	limiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(srv.Routes()),
		middleware.Metrics(metrics, srv.Routes()),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)

	return &app{
		handler:   chain(srv),
		analytics: analytics,
		metrics:   metrics,
		limiter:   limiter,
	}
}

// warm loads the dataset once at startup. A failure is logged and left for
// the request path to report; the server still starts.
func (a *app) warm(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	start := time.Now()
	ds, err := a.analytics.Dataset(ctx)
	if err != nil {
		logger.Warn("dataset unavailable at startup", "error", err)
		return
	}
	logger.Info("dataset loaded",
		"source", ds.Source,
		"records", len(ds.Records),
		"skipped", ds.Skipped,
		"years", ds.Years,
		"duration", time.Since(start),
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", handlers.Version,
		"addr", cfg.Address(),
		"source", cfg.Dataset.Source,
		"cache_ttl", cfg.Dataset.CacheTTL,
	)

	tracing, err := observability.InitTracing(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}

	a := newApp(cfg, logger, &services.FileLoader{Path: cfg.Dataset.Source, Logger: logger})
	a.warm(context.Background(), logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go server.Run(sweepCtx, sweepInterval, func() {
		if n := a.limiter.Sweep(clientIdle); n > 0 {
			logger.Debug("forgot idle rate limit clients", "removed", n)
		}
	})

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("rate-limit-sweeper", func(context.Context) error {
		stopSweep()
		return nil
	})
	gracefulServer.RegisterShutdownHook("tracing", tracing.Shutdown)

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
