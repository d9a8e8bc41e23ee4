package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/evergreen-media/backstage/internal/app"
	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/observability"
	"github.com/evergreen-media/backstage/internal/payouts"
	"github.com/evergreen-media/backstage/internal/platform/cache"
	"github.com/evergreen-media/backstage/internal/platform/db"
	"github.com/evergreen-media/backstage/internal/reports"
	"github.com/evergreen-media/backstage/internal/splits"
	"github.com/evergreen-media/backstage/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports will be built per request", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	splitsRepo := splits.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	payoutsRepo := payouts.NewRepository(pool)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	reportService := reports.NewService(logger, splitsRepo, ledgerRepo, payoutsRepo, reportCache, cfg.EngineWorkers)
	reportsHandler := reports.NewHandler(logger, reportService)

	splitsHandler := splits.NewHandler(logger, splitsRepo, func(r *http.Request) {
		if err := reportCache.Bump(r.Context()); err != nil {
			logger.Warn("bump report cache", slog.Any("error", err))
		}
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SplitsHandler:  splitsHandler,
		ReportsHandler: reportsHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
