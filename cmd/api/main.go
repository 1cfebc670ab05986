package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lootmarket-backend/api/controllers"
	"github.com/angelmondragon/lootmarket-backend/api/routes"
	"github.com/angelmondragon/lootmarket-backend/internal/auth"
	"github.com/angelmondragon/lootmarket-backend/internal/cart"
	"github.com/angelmondragon/lootmarket-backend/internal/catalog"
	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/internal/notifications"
	"github.com/angelmondragon/lootmarket-backend/internal/orders"
	"github.com/angelmondragon/lootmarket-backend/internal/users"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth/session"
	"github.com/angelmondragon/lootmarket-backend/pkg/bootstrap"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
	"github.com/angelmondragon/lootmarket-backend/pkg/outbox"
	"github.com/angelmondragon/lootmarket-backend/pkg/redis"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	boot := context.Background()
	rt, err := bootstrap.Start(boot, "api", bootstrap.WithRedis(), bootstrap.WithDevMigrations())
	if err != nil {
		rt.Fatal(boot, "api bootstrap failed", err)
	}
	cfg, logg := rt.Config, rt.Logger

	sessionManager, err := session.NewManager(rt.Redis, cfg.JWT)
	if err != nil {
		rt.Fatal(boot, "failed to create session manager", err)
	}

	carts := cart.NewRegistry()
	generations := listings.NewGenerations(0)

	deps, err := buildServices(cfg, logg, rt.DB, rt.Redis, sessionManager, carts, generations)
	if err != nil {
		rt.Fatal(boot, "failed to build services", err)
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.Sessions = sessionManager
	deps.Redis = rt.Redis
	deps.Pingers = map[string]controllers.Pinger{"db": rt.DB, "redis": rt.Redis}
	deps.MetricsHandler = promhttp.Handler()
	deps.HTTPMetrics = metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	// PORT is injected by the hosting platform and wins over config.
	addr := ":" + cmp.Or(os.Getenv("PORT"), cfg.App.Port)

	ctx, stop := rt.SignalContext(map[string]any{"addr": addr})
	defer stop()

	go runJanitor(ctx, logg, carts, generations, cfg.Cart.IdleTTL)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			rt.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(server.Shutdown(shutdownCtx), rt.Close())
	if err != nil {
		logg.Error(ctx, "api shutdown incomplete", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessions *session.Manager,
	carts *cart.Registry,
	generations *listings.Generations,
) (routes.Deps, error) {
	var deps routes.Deps

	userRepo := users.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogMetrics := metrics.NewCatalogMetrics(prometheus.DefaultRegisterer)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		Carts:          carts,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return deps, err
	}
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return deps, err
	}
	usersSvc, err := users.NewService(userRepo)
	if err != nil {
		return deps, err
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Repository: catalogRepo,
		Cache:      redisClient,
		Roles:      userRepo,
		Metrics:    catalogMetrics,
		Logger:     logg,
		CountsTTL:  cfg.Catalog.CountsTTL,
	})
	if err != nil {
		return deps, err
	}
	listingsSvc, err := listings.NewService(listings.ServiceParams{
		Repository:  listings.NewRepository(dbClient.DB()),
		References:  catalogRepo,
		DB:          dbClient,
		Outbox:      outboxSvc,
		Roles:       userRepo,
		Generations: generations,
		Counts:      catalogSvc,
		Metrics:     catalogMetrics,
		Logger:      logg,
		PageSize:    cfg.Catalog.PageSize,
		MaxPageSize: cfg.Catalog.MaxPageSize,
	})
	if err != nil {
		return deps, err
	}
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Registry: carts,
		Listings: listingsSvc,
		Logger:   logg,
		MaxLines: cfg.Cart.MaxLines,
	})
	if err != nil {
		return deps, err
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repository:  orders.NewRepository(dbClient.DB()),
		DB:          dbClient,
		Outbox:      outboxSvc,
		Carts:       carts,
		Roles:       userRepo,
		Metrics:     metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		PageSize:    cfg.Catalog.PageSize,
		MaxPageSize: cfg.Catalog.MaxPageSize,
	})
	if err != nil {
		return deps, err
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return deps, err
	}

	deps.Auth = authSvc
	deps.Register = registerSvc
	deps.Users = usersSvc
	deps.Catalog = catalogSvc
	deps.Listings = listingsSvc
	deps.Cart = cartSvc
	deps.Orders = ordersSvc
	deps.Notifications = notificationsSvc
	return deps, nil
}

// runJanitor drops idle carts and stale browse generations until ctx ends.
func runJanitor(ctx context.Context, logg *logger.Logger, carts *cart.Registry, generations *listings.Generations, idle time.Duration) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			droppedCarts := carts.Sweep(idle)
			droppedGenerations := generations.Sweep()
			if droppedCarts > 0 || droppedGenerations > 0 {
				logg.Debug(logg.WithFields(ctx, map[string]any{
					"carts":       droppedCarts,
					"generations": droppedGenerations,
				}), "janitor.sweep")
			}
		}
	}
}
