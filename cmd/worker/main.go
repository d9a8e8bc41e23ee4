package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/evergreen-media/backstage/internal/app"
	jobmetrics "github.com/evergreen-media/backstage/internal/jobs"
	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/payouts"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	splitsRepo := splits.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	payoutsRepo := payouts.NewRepository(pool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(logger, splitsRepo, ledgerRepo, payoutsRepo, reportCache, cfg.EngineWorkers)

	metrics := jobmetrics.NewMetrics(nil)
	warmJob := jobs.NewReportsWarmJob(reportService, logger, metrics)

	warmTask, err := jobs.NewReportsWarmTask(0)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
