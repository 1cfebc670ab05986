// Package bootstrap wires the pieces every binary starts with: .env,
// config, the logger, postgres and optionally redis.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/db"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/migrate"
	"github.com/angelmondragon/lootmarket-backend/pkg/redis"
)

// Runtime holds the shared clients of one process. Close releases them in
// reverse order of acquisition.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

type options struct {
	redis       bool
	devMigrate  bool
	skipDB      bool
	loadDotEnv  bool
	loadConfig  func() (*config.Config, error)
	openDB      func(context.Context, config.DBConfig, *logger.Logger) (*db.Client, error)
	openRedis   func(context.Context, config.RedisConfig, *logger.Logger) (*redis.Client, error)
	autoMigrate func(context.Context, *config.Config, *logger.Logger, *db.Client) error
}

type Option func(*options)

// WithRedis connects to redis as part of Start.
func WithRedis() Option { return func(o *options) { o.redis = true } }

// WithDevMigrations applies embedded migrations on boot for sqlite or for dev
// with the auto-migrate flag.
func WithDevMigrations() Option { return func(o *options) { o.devMigrate = true } }

// WithoutDB skips the database connection.
func WithoutDB() Option { return func(o *options) { o.skipDB = true } }

// Start loads configuration and opens the requested clients. On error every
// client opened so far is closed again.
func Start(ctx context.Context, kind string, opts ...Option) (*Runtime, error) {
	o := options{
		loadDotEnv:  true,
		loadConfig:  config.Load,
		openDB:      db.New,
		openRedis:   redis.New,
		autoMigrate: migrate.MaybeRunDev,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{Logger: logger.New(logger.Options{ServiceName: kind})}
	if o.loadDotEnv {
		if err := godotenv.Load(); err != nil {
			rt.Logger.Debug(ctx, ".env file not found, relying on environment")
		}
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return rt, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	if err := rt.open(ctx, o); err != nil {
		err = multierr.Append(err, rt.Close())
		return rt, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, o options) error {
	if !o.skipDB {
		client, err := o.openDB(ctx, rt.Config.DB, rt.Logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		rt.DB = client
		rt.OnClose("database", client.Close)

		if o.devMigrate {
			if err := o.autoMigrate(ctx, rt.Config, rt.Logger, client); err != nil {
				return fmt.Errorf("dev migrations: %w", err)
			}
		}
	}
	if o.redis {
		client, err := o.openRedis(ctx, rt.Config.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = client
		rt.OnClose("redis", client.Close)
	}
	return nil
}

// OnClose registers fn to run during Close.
func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first and returns every failure.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errs
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the env and
// service kind as log fields, plus any extra fields.
func (rt *Runtime) SignalContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return rt.Logger.WithFields(ctx, fields), stop
}

// Fatal logs err, releases the runtime and exits non-zero.
func (rt *Runtime) Fatal(ctx context.Context, msg string, err error) {
	rt.Logger.Error(ctx, msg, err)
	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(ctx, "shutdown incomplete", closeErr)
	}
	os.Exit(1)
}
