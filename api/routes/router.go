package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lootmarket-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/lootmarket-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/lootmarket-backend/api/controllers/orders"
	"github.com/angelmondragon/lootmarket-backend/api/middleware"
	"github.com/angelmondragon/lootmarket-backend/internal/auth"
	"github.com/angelmondragon/lootmarket-backend/internal/cart"
	"github.com/angelmondragon/lootmarket-backend/internal/catalog"
	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/internal/notifications"
	"github.com/angelmondragon/lootmarket-backend/internal/orders"
	"github.com/angelmondragon/lootmarket-backend/internal/users"
	"github.com/angelmondragon/lootmarket-backend/pkg/auth/session"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
)

// redisStore is the Redis surface used by the HTTP middleware.
type redisStore interface {
	middleware.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps bundles everything the router mounts. Nil services answer 500 so a
// partially wired binary still serves health checks.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions session.AccessSessionChecker
	Redis    redisStore
	Pingers  map[string]controllers.Pinger
	// MetricsHandler serves /metrics; nil falls back to the default gatherer.
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics

	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	Catalog       catalog.Service
	Listings      listings.Service
	Cart          cart.Service
	Orders        orders.Service
	Notifications notifications.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	limits := cfg.AuthRateLimit
	loginThrottle := middleware.Throttle{
		Name:     "login",
		Window:   limits.LoginWindow,
		PerIP:    limits.LoginIPLimit,
		PerEmail: limits.LoginEmailLimit,
	}
	registerThrottle := middleware.Throttle{
		Name:     "register",
		Window:   limits.RegisterWindow,
		PerIP:    limits.RegisterIPLimit,
		PerEmail: limits.RegisterEmailLimit,
	}

	var (
		rateStore   middleware.CounterStore
		idemStore   middleware.IdempotencyStore
		metricsView = d.MetricsHandler
	)
	if d.Redis != nil {
		rateStore, idemStore = d.Redis, d.Redis
	}
	if metricsView == nil {
		metricsView = promhttp.Handler()
	}
	checkoutOnce := middleware.Idempotency(idemStore, middleware.CheckoutReplayTTL, logg)
	adminOnce := middleware.Idempotency(idemStore, middleware.AdminReplayTTL, logg)
	authenticated := middleware.Auth(cfg.JWT, d.Sessions, logg)
	maybeAuthenticated := middleware.OptionalAuth(cfg.JWT, d.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})
	r.Handle("/metrics", metricsView)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.Throttled(loginThrottle, rateStore, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.Throttled(registerThrottle, rateStore, logg)).Post("/register", controllers.AuthRegister(d.Register, d.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(d.Auth, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, cfg.JWT, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(maybeAuthenticated)

			r.Get("/categories", controllers.CatalogCategories(d.Catalog, logg))
			r.Get("/games", controllers.CatalogGames(d.Catalog, logg))
			r.Get("/listings", controllers.ListingsBrowse(d.Listings, logg))
			r.Get("/listings/{listingId}", controllers.ListingGet(d.Listings, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/profile", controllers.ProfileGet(d.Users, logg))
			r.Patch("/profile", controllers.ProfileUpdate(d.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(d.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(d.Cart, logg))
				r.Patch("/items/{listingId}", cartcontrollers.CartUpdateItem(d.Cart, logg))
				r.Delete("/items/{listingId}", cartcontrollers.CartRemoveItem(d.Cart, logg))
			})

			r.With(checkoutOnce).Post("/checkout", ordercontrollers.Checkout(d.Orders, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(d.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationsList(d.Notifications, logg))
				r.Post("/read", controllers.NotificationsMarkAllRead(d.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.NotificationMarkRead(d.Notifications, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		if cfg.FeatureFlags.AllowAdminRegister && !cfg.App.IsProd() {
			r.With(middleware.Throttled(registerThrottle, rateStore, logg)).Post("/auth/register", controllers.AdminAuthRegister(d.Register, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

			r.Post("/games", controllers.AdminCreateGame(d.Catalog, logg))

			r.Get("/listings", controllers.AdminListingsList(d.Listings, logg))
			r.With(adminOnce).Post("/listings", controllers.AdminListingCreate(d.Listings, logg))
			r.Put("/listings/{listingId}", controllers.AdminListingUpdate(d.Listings, logg))
			r.Delete("/listings/{listingId}", controllers.AdminListingDelete(d.Listings, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
				r.With(adminOnce).Post("/{orderId}/transition", ordercontrollers.AdminTransition(d.Orders, logg))
			})

			r.Get("/stats/seller-performance", ordercontrollers.SellerPerformance(d.Orders, logg))
		})
	})

	return r
}
