package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/lootmarket-backend/internal/notifications"
	"github.com/angelmondragon/lootmarket-backend/pkg/bootstrap"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/lootmarket-backend/pkg/pubsub"
)

const serviceKind = "worker"

func main() {
	boot := context.Background()
	rt, err := bootstrap.Start(boot, serviceKind, bootstrap.WithRedis())
	if err != nil {
		rt.Fatal(boot, "worker bootstrap failed", err)
	}
	cfg, logg := rt.Config, rt.Logger

	if cfg.PubSub.OrdersSubscription == "" {
		rt.Fatal(boot, "orders subscription not configured", errors.New("LOOTMARKET_PUBSUB_ORDERS_SUBSCRIPTION is required"))
	}

	psClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		rt.Fatal(boot, "failed to bootstrap pubsub", err)
	}
	rt.OnClose("pubsub", psClient.Close)

	guard, err := idempotency.NewConsumerGuard(rt.Redis, cfg.Outbox.DedupeTTL)
	if err != nil {
		rt.Fatal(boot, "failed to create idempotency guard", err)
	}

	consumer, err := notifications.NewConsumer(
		notifications.NewRepository(rt.DB.DB()),
		psClient.Subscriber(cfg.PubSub.OrdersSubscription),
		guard,
		logg,
	)
	if err != nil {
		rt.Fatal(boot, "failed to create notification consumer", err)
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Consumer: consumer,
		DB:       rt.DB,
		Redis:    rt.Redis,
		PubSub:   psClient,
	})
	if err != nil {
		rt.Fatal(boot, "failed to create worker service", err)
	}

	ctx, stop := rt.SignalContext(map[string]any{"subscription": cfg.PubSub.OrdersSubscription})
	defer stop()

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "worker stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "worker shutdown incomplete", err)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}
