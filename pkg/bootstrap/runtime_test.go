package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/redis"
)

func testConfig() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.LogLevel = "warn"
	return cfg, nil
}

func sqliteOpener(t *testing.T) func(context.Context, config.DBConfig, *logger.Logger) (*db.Client, error) {
	return func(context.Context, config.DBConfig, *logger.Logger) (*db.Client, error) {
		conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return db.Wrap(conn), nil
	}
}

func stubbed(t *testing.T, tweak func(*options)) Option {
	return func(o *options) {
		o.loadDotEnv = false
		o.loadConfig = testConfig
		o.openDB = sqliteOpener(t)
		o.autoMigrate = func(context.Context, *config.Config, *logger.Logger, *db.Client) error { return nil }
		if tweak != nil {
			tweak(o)
		}
	}
}

func TestStartSetsKindAndOpensDB(t *testing.T) {
	rt, err := Start(context.Background(), "api", stubbed(t, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, "api", rt.Config.Service.Kind)
	require.NotNil(t, rt.DB)
	assert.NoError(t, rt.DB.Ping(context.Background()))
	assert.Nil(t, rt.Redis)
}

func TestStartConfigFailure(t *testing.T) {
	boom := errors.New("missing LOOTMARKET_JWT_SECRET")
	rt, err := Start(context.Background(), "api", stubbed(t, func(o *options) {
		o.loadConfig = func() (*config.Config, error) { return nil, boom }
	}))
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rt)
	assert.NotNil(t, rt.Logger)
}

func TestStartClosesDBWhenRedisFails(t *testing.T) {
	rt, err := Start(context.Background(), "worker", WithRedis(), stubbed(t, func(o *options) {
		o.openRedis = func(context.Context, config.RedisConfig, *logger.Logger) (*redis.Client, error) {
			return nil, errors.New("dial tcp: refused")
		}
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: dial tcp: refused")
	assert.Error(t, rt.DB.Ping(context.Background()), "database should be closed")
}

func TestStartDevMigrationFailure(t *testing.T) {
	_, err := Start(context.Background(), "api", WithDevMigrations(), stubbed(t, func(o *options) {
		o.autoMigrate = func(context.Context, *config.Config, *logger.Logger, *db.Client) error {
			return errors.New("dirty version")
		}
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dev migrations: dirty version")
}

func TestStartWithoutDB(t *testing.T) {
	rt, err := Start(context.Background(), "migrate", WithoutDB(), stubbed(t, func(o *options) {
		o.openDB = func(context.Context, config.DBConfig, *logger.Logger) (*db.Client, error) {
			t.Fatal("database should not be opened")
			return nil, nil
		}
	}))
	require.NoError(t, err)
	assert.Nil(t, rt.DB)
}

func TestCloseRunsNewestFirstAndJoinsErrors(t *testing.T) {
	rt := &Runtime{}
	var order []string
	rt.OnClose("db", func() error { order = append(order, "db"); return errors.New("db busy") })
	rt.OnClose("redis", func() error { order = append(order, "redis"); return nil })
	rt.OnClose("pubsub", func() error { order = append(order, "pubsub"); return errors.New("pubsub stuck") })

	err := rt.Close()
	require.Error(t, err)
	assert.Equal(t, []string{"pubsub", "redis", "db"}, order)
	assert.Contains(t, err.Error(), "close db: db busy")
	assert.Contains(t, err.Error(), "close pubsub: pubsub stuck")

	assert.NoError(t, rt.Close(), "closers run once")
}
