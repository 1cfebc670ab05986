package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/lootmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

const (
	throttleKeyPrefix = "lm:rl"
	// Credentials payloads are tiny; anything larger is not worth parsing.
	maxThrottleBody = 16 << 10
)

// CounterStore is the fixed-window counter backend, normally Redis.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Throttle is a fixed-window attempt budget for one credentials endpoint.
// Attempts are counted per client IP and per submitted email; a zero limit
// disables that dimension.
type Throttle struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

type bucket struct {
	scope string
	id    string
	limit int
}

func (t Throttle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerEmail > 0)
}

func (t Throttle) key(b bucket) string {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if name == "" {
		name = "auth"
	}
	return strings.Join([]string{throttleKeyPrefix, b.scope, name, b.id}, ":")
}

// buckets lists the counters a request is charged against, IP first.
func (t Throttle) buckets(r *http.Request, body []byte) []bucket {
	var out []bucket
	if t.PerIP > 0 {
		if ip := ClientIP(r); ip != "" {
			out = append(out, bucket{scope: "ip", id: ip, limit: t.PerIP})
		}
	}
	if t.PerEmail > 0 {
		if email := emailFromBody(body); email != "" {
			out = append(out, bucket{scope: "email", id: digest(email), limit: t.PerEmail})
		}
	}
	return out
}

func (t Throttle) retryAfter() string {
	secs := int(t.Window.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Throttled rejects requests past the budget with RATE_LIMIT_EXCEEDED and a
// Retry-After header. Emails are hashed before they become counter keys.
func Throttled(t Throttle, store CounterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !t.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if t.PerEmail > 0 && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxThrottleBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}

			for _, b := range t.buckets(r, body) {
				count, err := store.IncrWithTTL(ctx, t.key(b), t.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit counter"))
					return
				}
				if count <= int64(b.limit) {
					continue
				}
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"throttle": t.Name,
					"scope":    b.scope,
					"attempts": count,
					"limit":    b.limit,
				}), "throttle.blocked")
				w.Header().Set("Retry-After", t.retryAfter())
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
					WithDetails(map[string]any{"scope": b.scope, "retry_after_seconds": t.Window.Seconds()}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first valid address from X-Forwarded-For, then
// X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
