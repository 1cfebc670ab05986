package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLeaseTTL = 50 * time.Minute

// Lease grants one replica the right to run a cycle. The returned release
// func is nil when the lease is held elsewhere.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLease is a SET NX lease whose value names the holder. It expires on
// its own if the holder dies mid-cycle.
type RedisLease struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

func NewRedisLease(store leaseStore, env string, ttl time.Duration) (*RedisLease, error) {
	if store == nil {
		return nil, errors.New("redis store required for lease")
	}
	if env == "" {
		env = "local"
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLease{store: store, key: "lm:cron:lease:" + env, ttl: ttl}, nil
}

func (l *RedisLease) Acquire(ctx context.Context) (func(context.Context) error, error) {
	holder := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, holder, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return func(ctx context.Context) error { return l.release(ctx, holder) }, nil
}

// release deletes the key only while it still names holder; a lease that
// expired and was taken by another replica is left alone.
func (l *RedisLease) release(ctx context.Context, holder string) error {
	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, goredis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lease: %w", err)
	case current != holder:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("drop lease: %w", err)
	}
	return nil
}
