package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lootmarket-backend/pkg/bootstrap"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/registry"
	"github.com/angelmondragon/lootmarket-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	boot := context.Background()
	rt, err := bootstrap.Start(boot, serviceKind, bootstrap.WithRedis(), bootstrap.WithDevMigrations())
	if err != nil {
		rt.Fatal(boot, "outbox publisher bootstrap failed", err)
	}
	cfg, logg := rt.Config, rt.Logger

	psClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		rt.Fatal(boot, "failed to bootstrap pubsub", err)
	}
	rt.OnClose("pubsub", psClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		rt.Fatal(boot, "failed to build event registry", err)
	}
	guard, err := idempotency.NewGuard(rt.Redis, cfg.Outbox.DedupeTTL)
	if err != nil {
		rt.Fatal(boot, "failed to build dedupe guard", err)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         rt.DB,
		PubSub:     psClient,
		Repository: outbox.NewRepository(rt.DB.DB()),
		Registry:   eventRegistry,
		Guard:      guard,
		Metrics:    metrics.NewJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		rt.Fatal(boot, "failed to create outbox publisher", err)
	}

	ctx, stop := rt.SignalContext(nil)
	defer stop()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	rt.OnClose("metrics listener", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "outbox publisher shutdown incomplete", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
