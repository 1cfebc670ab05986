package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-Id"
	cloudTraceHeader   = "X-Cloud-Trace-Context"
	maxRequestIDLength = 64
)

// RequestID tags the request with an id taken from X-Request-Id, else the
// trace id of the load balancer's X-Cloud-Trace-Context, else a fresh UUID.
// The chosen id is echoed back and attached to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := pickRequestID(r.Header)
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), id)))
		})
	}
}

func pickRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); printableToken(id) {
		return id
	}
	// TRACE_ID/SPAN_ID;o=OPTIONS
	if trace, _, _ := strings.Cut(h.Get(cloudTraceHeader), "/"); printableToken(trace) {
		return trace
	}
	return uuid.NewString()
}

// printableToken accepts non-empty visible ASCII up to maxRequestIDLength.
func printableToken(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '!' || r > '~' }) < 0
}
