package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Catalog       CatalogConfig
	Cart          CartConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Catalog.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOOTMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"LOOTMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOOTMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOOTMARKET_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LOOTMARKET_LOG_FORMAT" default:"json"`
	// CORSOrigins is a comma separated allow-list for browser clients.
	CORSOrigins []string `envconfig:"LOOTMARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

// ConsoleLogs reports whether logs should be human readable instead of JSON.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOOTMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOOTMARKET_DB_DSN"`
	Driver string `envconfig:"LOOTMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOOTMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"LOOTMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOOTMARKET_DB_USER"`
	LegacyPassword string `envconfig:"LOOTMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOOTMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOOTMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOOTMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOOTMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOOTMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOOTMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the threshold above which a statement is logged at warn. Zero disables it.
	SlowQuery time.Duration `envconfig:"LOOTMARKET_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOOTMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOOTMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"LOOTMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOOTMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOOTMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOOTMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOOTMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOOTMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOOTMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LOOTMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LOOTMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LOOTMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LOOTMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOOTMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOOTMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOOTMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOOTMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOOTMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LOOTMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOOTMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOOTMARKET_AUTO_MIGRATE" default:"false"`
	// AllowAdminRegister exposes the admin bootstrap endpoint outside prod.
	AllowAdminRegister bool `envconfig:"LOOTMARKET_ALLOW_ADMIN_REGISTER" default:"false"`
}

// CatalogConfig bounds storefront pagination.
type CatalogConfig struct {
	PageSize    int           `envconfig:"LOOTMARKET_CATALOG_PAGE_SIZE" default:"12"`
	MaxPageSize int           `envconfig:"LOOTMARKET_CATALOG_MAX_PAGE_SIZE" default:"48"`
	CountsTTL   time.Duration `envconfig:"LOOTMARKET_CATALOG_COUNTS_TTL" default:"1m"`
}

func (c CatalogConfig) validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvCatalogPageSize)
	}
	if c.MaxPageSize < c.PageSize {
		return fmt.Errorf("%s (%d) must be >= %s (%d)", EnvCatalogMaxPageSize, c.MaxPageSize, EnvCatalogPageSize, c.PageSize)
	}
	return nil
}

type CartConfig struct {
	MaxLines int           `envconfig:"LOOTMARKET_CART_MAX_LINES" default:"50"`
	IdleTTL  time.Duration `envconfig:"LOOTMARKET_CART_IDLE_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LOOTMARKET_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"LOOTMARKET_PUBSUB_ORDERS_TOPIC" default:"lm-order-events"`
	CatalogTopic       string `envconfig:"LOOTMARKET_PUBSUB_CATALOG_TOPIC" default:"lm-catalog-events"`
	OrdersSubscription string `envconfig:"LOOTMARKET_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOOTMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOOTMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOOTMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// DedupeTTL bounds how long a published event id is remembered across publisher replicas.
	DedupeTTL time.Duration `envconfig:"LOOTMARKET_OUTBOX_DEDUPE_TTL" default:"24h"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"LOOTMARKET_CRON_INTERVAL" default:"15m"`
	LockTTL         time.Duration `envconfig:"LOOTMARKET_CRON_LOCK_TTL" default:"14m"`
	OutboxRetention time.Duration `envconfig:"LOOTMARKET_CRON_OUTBOX_RETENTION" default:"336h"`
	// OutboxPruneBatch bounds how many rows one retention transaction deletes.
	OutboxPruneBatch int `envconfig:"LOOTMARKET_CRON_OUTBOX_PRUNE_BATCH" default:"500"`
}

// PollInterval converts the configured poll interval into a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = "sqlite"
		db.DSN = "file:lootmarket.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
