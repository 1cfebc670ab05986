package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/lootmarket-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

type contextKey string

const (
	ctxActor contextKey = "actor"
)

// ActorFromContext returns the authenticated caller seeded by Auth.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	if ctx == nil {
		return pkgAuth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(pkgAuth.Actor)
	if !ok || actor.UserID == uuid.Nil {
		return pkgAuth.Actor{}, false
	}
	return actor, true
}

// WithActor injects the caller into the context for downstream handlers.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// RequireActor returns the caller or an UNAUTHORIZED error when the route was
// reached without Auth.
func RequireActor(ctx context.Context) (pkgAuth.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return pkgAuth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return string(actor.Role)
}

// RequestGenerationHeader carries the client's browse generation so superseded
// catalog reads can be dropped.
const RequestGenerationHeader = "X-Request-Generation"
