package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag
// so the prefix only matters for fields without one.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory = "memory"
	StorageDriverFile   = "file"
	StorageDriverRedis  = "redis"
	StorageDriverSQL    = "sql"
)

const (
	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvAPIURL        = "STOREFRONT_API_URL"
	EnvStorageDriver = "STOREFRONT_STORAGE_DRIVER"
	EnvStorageFile   = "STOREFRONT_STORAGE_FILE"
	EnvDBDSN         = "STOREFRONT_DB_DSN"
	EnvDBHost        = "STOREFRONT_DB_HOST"
	EnvDBUser        = "STOREFRONT_DB_USER"
	EnvDBName        = "STOREFRONT_DB_NAME"
	EnvRedisURL      = "STOREFRONT_REDIS_URL"
	EnvRedisAddr     = "STOREFRONT_REDIS_ADDR"
	EnvUseSQLite     = "STOREFRONT_USE_SQLITE"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
