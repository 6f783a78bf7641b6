package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN     = "STOREFRONT_DB_DSN"
	EnvDBDriver  = "STOREFRONT_DB_DRIVER"
	EnvDBHost    = "STOREFRONT_DB_HOST"
	EnvDBPort    = "STOREFRONT_DB_PORT"
	EnvDBUser    = "STOREFRONT_DB_USER"
	EnvDBPass    = "STOREFRONT_DB_PASSWORD"
	EnvDBName    = "STOREFRONT_DB_NAME"
	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"
	EnvJWTExp    = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvCartSessionTTL   = "STOREFRONT_CART_SESSION_TTL"
	EnvPubSubOrderTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvOutboxBatchSize  = "STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
