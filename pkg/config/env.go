package config

const (
	EnvPrefix = "LOCALDROP"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv     = "LOCALDROP_APP_ENV"
	EnvPort       = "LOCALDROP_APP_PORT"
	EnvAPIBaseURL = "LOCALDROP_API_BASE_URL"
	EnvAPITimeout = "LOCALDROP_API_TIMEOUT"
	EnvJWTSecret  = "LOCALDROP_JWT_SECRET"

	EnvStateBackend = "LOCALDROP_STATE_BACKEND"

	EnvDBDSN    = "LOCALDROP_DB_DSN"
	EnvDBDriver = "LOCALDROP_DB_DRIVER"
	EnvDBHost   = "LOCALDROP_DB_HOST"
	EnvDBUser   = "LOCALDROP_DB_USER"
	EnvDBName   = "LOCALDROP_DB_NAME"

	EnvRedisURL  = "LOCALDROP_REDIS_URL"
	EnvRedisAddr = "LOCALDROP_REDIS_ADDR"

	EnvOTPAllowedDomain = "LOCALDROP_OTP_ALLOWED_DOMAIN"
	EnvOTPTTL           = "LOCALDROP_OTP_TTL"
)

const (
	StateBackendMemory   = "memory"
	StateBackendSQLite   = "sqlite"
	StateBackendPostgres = "postgres"
	StateBackendRedis    = "redis"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
