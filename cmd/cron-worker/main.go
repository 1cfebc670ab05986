package main

import (
	"context"
	"errors"
	"flag"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/lootmarket-backend/internal/catalog"
	"github.com/angelmondragon/lootmarket-backend/internal/cron"
	"github.com/angelmondragon/lootmarket-backend/pkg/bootstrap"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox"
	"github.com/angelmondragon/lootmarket-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	rt, err := bootstrap.Start(context.Background(), "cron-worker", bootstrap.WithRedis(), bootstrap.WithDevMigrations())
	if err != nil {
		rt.Fatal(context.Background(), "cron worker bootstrap failed", err)
	}
	cfg, logg := rt.Config, rt.Logger

	jobs, err := buildJobs(cfg, logg, rt.DB, rt.Redis)
	if err != nil {
		rt.Fatal(context.Background(), "failed to register cron jobs", err)
	}
	lease, err := cron.NewRedisLease(rt.Redis, cfg.App.Env, cfg.Cron.LockTTL)
	if err != nil {
		rt.Fatal(context.Background(), "failed to create cron lease", err)
	}
	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Jobs:     jobs,
		Lease:    lease,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		rt.Fatal(context.Background(), "failed to create cron scheduler", err)
	}

	ctx, stop := rt.SignalContext(map[string]any{"interval": scheduler.Interval().String()})
	defer stop()

	if *once {
		logg.Info(ctx, "running single cron cycle")
		err = scheduler.RunOnce(ctx)
	} else {
		logg.Info(ctx, "starting cron worker")
		err = scheduler.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "cron worker shutdown incomplete", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) ([]cron.Job, error) {
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Repository: catalog.NewRepository(dbClient.DB()),
		Cache:      redisClient,
		Logger:     logg,
		CountsTTL:  cfg.Catalog.CountsTTL,
	})
	if err != nil {
		return nil, err
	}
	countsJob, err := cron.NewCatalogCountsJob(logg, catalogSvc)
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:         logg,
		DB:             dbClient,
		Repository:     outbox.NewRepository(dbClient.DB()),
		Retention:      cfg.Cron.OutboxRetention,
		ParkedAttempts: cfg.Outbox.MaxAttempts,
		BatchSize:      cfg.Cron.OutboxPruneBatch,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{countsJob, retentionJob}, nil
}
