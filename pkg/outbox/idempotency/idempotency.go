package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/redis"
)

const (
	stagePublished = "published"
	stageProcessed = "processed"
)

// Guard remembers event ids that already went through one stage of delivery.
// Keys follow the `lm:idempotency:evt:<stage>:<scope>:<event_id>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	stage string
}

// NewGuard dedupes publishes to Pub/Sub; scope is the topic.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	return newGuard(store, ttl, stagePublished)
}

// NewConsumerGuard dedupes deliveries to a subscriber; scope is the consumer name.
func NewConsumerGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	return newGuard(store, ttl, stageProcessed)
}

func newGuard(store redis.IdempotencyStore, ttl time.Duration, stage string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, stage: stage}, nil
}

// Claim marks the event as in flight. It returns false when another run already claimed it.
func (g *Guard) Claim(ctx context.Context, scope string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(scope, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, "1", g.ttl)
}

// Release forgets a claim so a failed publish can be retried.
func (g *Guard) Release(ctx context.Context, scope string, eventID uuid.UUID) error {
	key, err := g.key(scope, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(scope string, eventID uuid.UUID) (string, error) {
	if scope == "" {
		return "", errors.New("scope is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("evt:%s:%s", g.stage, scope), eventID.String()), nil
}
