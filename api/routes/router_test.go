package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lootmarket-backend/api/controllers"
	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/metrics"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return accessID != "", nil
}

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

type countingOrders struct {
	orders.Service
	checkouts int
}

func (c *countingOrders) Checkout(ctx context.Context, actor pkgAuth.Actor) (*orders.CheckoutResult, error) {
	c.checkouts++
	return &orders.CheckoutResult{Orders: []orders.Order{}}, nil
}

func (c *countingOrders) SellerPerformance(ctx context.Context, actor pkgAuth.Actor, now time.Time) (*orders.Performance, error) {
	return &orders.Performance{Since: now}, nil
}

func (c *countingOrders) ListForUser(ctx context.Context, actor pkgAuth.Actor, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.Order{}}, nil
}

type recordingListings struct {
	listings.Service
	mu        sync.Mutex
	browses   []listings.BrowseInput
	adminList []listings.AdminListInput
}

func (l *recordingListings) Browse(ctx context.Context, input listings.BrowseInput) (*listings.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.browses = append(l.browses, input)
	return &listings.Result{Items: []listings.Listing{}}, nil
}

func (l *recordingListings) AdminList(ctx context.Context, actor pkgAuth.Actor, input listings.AdminListInput) (*listings.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adminList = append(l.adminList, input)
	return &listings.Result{Items: []listings.Listing{}}, nil
}

func (l *recordingListings) lastBrowse(t *testing.T) listings.BrowseInput {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.browses)
	return l.browses[len(l.browses)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "lootmarket", ExpirationMinutes: 60},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:  time.Minute,
			LoginIPLimit: 2,
		},
	}
}

type harness struct {
	handler  http.Handler
	orders   *countingOrders
	listings *recordingListings
	cfg      *config.Config
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	svc := &countingOrders{}
	catalog := &recordingListings{}
	h := NewRouter(Deps{
		Config:         cfg,
		Logger:         logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Sessions:       stubSessions{},
		Redis:          newMemoryRedis(),
		Pingers:        map[string]controllers.Pinger{"db": stubPinger{}},
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		Orders:         svc,
		Listings:       catalog,
	})
	return harness{handler: h, orders: svc, listings: catalog, cfg: cfg}
}

func (h harness) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	return h.tokenFor(t, uuid.New(), role)
}

func (h harness) tokenFor(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func (h harness) do(method, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/ready", "", nil).Code)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

func TestRouterRequestIDEchoed(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health/live", "", map[string]string{"X-Request-Id": "trace-123"})
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-Id"))
}

func TestRouterRequiresAuthentication(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/profile", "/api/v1/notifications"} {
		assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, path, "", nil).Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/v1/checkout", "", nil).Code)
}

func TestRouterAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	path := "/api/admin/v1/stats/seller-performance"

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, h.token(t, enums.UserRoleUser), nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, h.token(t, enums.UserRoleAdmin), nil).Code)
}

func TestRouterCheckoutReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, enums.UserRoleUser)
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := h.do(http.MethodPost, "/api/v1/checkout", token, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := h.do(http.MethodPost, "/api/v1/checkout", token, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, h.orders.checkouts)

	h.do(http.MethodPost, "/api/v1/checkout", token, nil)
	assert.Equal(t, 2, h.orders.checkouts)
}

func TestRouterLoginRateLimited(t *testing.T) {
	h := newHarness(t)
	var last int
	for i := 0; i < 3; i++ {
		last = h.do(http.MethodPost, "/api/v1/auth/login", "", nil).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouterAdminRegisterHiddenByDefault(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/admin/v1/auth/register", "", nil).Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodOptions, "/api/v1/listings", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterPagedEndpointsWithoutQuery(t *testing.T) {
	h := newHarness(t)
	user := h.token(t, enums.UserRoleUser)
	admin := h.token(t, enums.UserRoleAdmin)

	cases := []struct {
		path  string
		token string
	}{
		{"/api/v1/listings", ""},
		{"/api/v1/listings?page=2", ""},
		{"/api/v1/listings?page=0", ""},
		{"/api/v1/orders", user},
		{"/api/v1/orders?page=2", user},
		{"/api/admin/v1/listings", admin},
	}
	for _, tc := range cases {
		rec := h.do(http.MethodGet, tc.path, tc.token, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "%s: %s", tc.path, rec.Body.String())
	}

	browse := h.listings.lastBrowse(t)
	assert.Equal(t, 1, browse.Page.Page)
	assert.Zero(t, browse.Page.Size)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/orders?size=1000", user, nil).Code)
}

func TestRouterBrowseKeyedBySignedInUser(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()
	gen := map[string]string{"X-Request-Generation": "1"}

	h.do(http.MethodGet, "/api/v1/listings", h.tokenFor(t, alice, enums.UserRoleUser), gen)
	assert.Equal(t, "user:"+alice.String(), h.listings.lastBrowse(t).ClientKey)

	h.do(http.MethodGet, "/api/v1/listings", h.tokenFor(t, bob, enums.UserRoleUser), gen)
	assert.Equal(t, "user:"+bob.String(), h.listings.lastBrowse(t).ClientKey)

	rec := h.do(http.MethodGet, "/api/v1/listings", "", gen)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(h.listings.lastBrowse(t).ClientKey, "ip:"))

	rec = h.do(http.MethodGet, "/api/v1/listings", "not-a-token", gen)
	require.Equal(t, http.StatusOK, rec.Code, "public browse ignores unusable tokens")
	assert.True(t, strings.HasPrefix(h.listings.lastBrowse(t).ClientKey, "ip:"))
}
