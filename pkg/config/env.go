package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "LOOTMARKET_APP_ENV"
	EnvPort                   = "LOOTMARKET_APP_PORT"
	EnvLogLevel               = "LOOTMARKET_LOG_LEVEL"
	EnvDBDSN                  = "LOOTMARKET_DB_DSN"
	EnvDBHost                 = "LOOTMARKET_DB_HOST"
	EnvDBUser                 = "LOOTMARKET_DB_USER"
	EnvDBName                 = "LOOTMARKET_DB_NAME"
	EnvRedisURL               = "LOOTMARKET_REDIS_URL"
	EnvJWTSecret              = "LOOTMARKET_JWT_SECRET"
	EnvJWTIssuer              = "LOOTMARKET_JWT_ISSUER"
	EnvJWTExpMins             = "LOOTMARKET_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "LOOTMARKET_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "LOOTMARKET_USE_SQLITE"
	EnvCatalogPageSize        = "LOOTMARKET_CATALOG_PAGE_SIZE"
	EnvCatalogMaxPageSize     = "LOOTMARKET_CATALOG_MAX_PAGE_SIZE"
	EnvCartMaxLines           = "LOOTMARKET_CART_MAX_LINES"
	EnvGCPProjectID           = "LOOTMARKET_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "LOOTMARKET_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "LOOTMARKET_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubCatalogTopic     = "LOOTMARKET_PUBSUB_CATALOG_TOPIC"
	EnvCronInterval           = "LOOTMARKET_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
