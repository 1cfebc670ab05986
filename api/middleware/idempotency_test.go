package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lootmarket-backend/api/validators"
	pkgAuth "github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func checkoutRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, checkoutRequest(`{}`, ""))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsLongKey(t *testing.T) {
	h := Idempotency(newFakeStore(), CheckoutReplayTTL, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, checkoutRequest(`{}`, strings.Repeat("k", maxIdempotencyKeyLen+1)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	h := Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))
	body := `{"note":"` + strings.Repeat("x", int(validators.MaxBodyBytes)) + `"}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, checkoutRequest(body, "big"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Empty(t, store.data)
}

func TestIdempotencyReplaysFinishedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Internal", "drop-me")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order":"o-1"}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, checkoutRequest(`{"a":1}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, checkoutRequest(`{"a":1}`, "abc"))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, `{"order":"o-1"}`, replay.Body.String())
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Empty(t, replay.Header().Get("X-Internal"))
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)

	for key := range store.data {
		assert.Equal(t, CheckoutReplayTTL, store.ttls[key])
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	h := Idempotency(newFakeStore(), AdminReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{"a":1}`, "xyz"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, checkoutRequest(`{"a":2}`, "xyz"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			// Arrives while the first request still holds the claim.
			h.ServeHTTP(inner, checkoutRequest(`{}`, "busy"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, checkoutRequest(`{}`, "busy"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, checkoutRequest(`{}`, "retry"))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, checkoutRequest(`{}`, "retry"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, CheckoutReplayTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := checkoutRequest(`{}`, "shared")
		req = req.WithContext(WithActor(req.Context(), pkgAuth.Actor{UserID: uuid.New(), Role: enums.UserRoleUser}))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}
