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
	API           APIConfig
	State         StateConfig
	DB            DBConfig
	Redis         RedisConfig
	OTP           OTPConfig
	JWT           JWTConfig
	Mail          MailConfig
	OAuth         OAuthConfig
	GoogleMaps    GoogleMapsConfig
	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.State.validate(cfg.DB, cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOCALDROP_APP_ENV" required:"true"`
	Port         string `envconfig:"LOCALDROP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LOCALDROP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOCALDROP_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated list of browser origins allowed to call the auth API.
	CORSOrigins []string `envconfig:"LOCALDROP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig points the gateways at the marketplace API.
type APIConfig struct {
	BaseURL           string        `envconfig:"LOCALDROP_API_BASE_URL" required:"true"`
	Timeout           time.Duration `envconfig:"LOCALDROP_API_TIMEOUT" default:"30s"`
	PollInterval      time.Duration `envconfig:"LOCALDROP_TRACKING_POLL_INTERVAL" default:"15s"`
	RiderPushInterval time.Duration `envconfig:"LOCALDROP_RIDER_PUSH_INTERVAL" default:"10s"`
}

// StateConfig selects the durable backend behind the client state store.
type StateConfig struct {
	Backend   string `envconfig:"LOCALDROP_STATE_BACKEND" default:"memory"`
	KeyPrefix string `envconfig:"LOCALDROP_STATE_KEY_PREFIX" default:"state"`
}

func (s StateConfig) validate(db DBConfig, redis RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StateBackendMemory:
		return nil
	case StateBackendSQLite, StateBackendPostgres:
		if db.DSN == "" {
			return fmt.Errorf("%s state backend requires %s", s.Backend, EnvDBDSN)
		}
		return nil
	case StateBackendRedis:
		if redis.URL == "" && redis.Address == "" {
			return fmt.Errorf("redis state backend requires %s or %s", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	}
	return fmt.Errorf("unknown state backend %q", s.Backend)
}

// Normalized returns the lower-cased backend name.
func (s StateConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(s.Backend))
}

type DBConfig struct {
	DSN    string `envconfig:"LOCALDROP_DB_DSN"`
	Driver string `envconfig:"LOCALDROP_DB_DRIVER" default:"sqlite"`

	LegacyHost     string `envconfig:"LOCALDROP_DB_HOST"`
	LegacyPort     int    `envconfig:"LOCALDROP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOCALDROP_DB_USER"`
	LegacyPassword string `envconfig:"LOCALDROP_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOCALDROP_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOCALDROP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOCALDROP_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"LOCALDROP_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"LOCALDROP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOCALDROP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOCALDROP_REDIS_URL"`
	Address      string        `envconfig:"LOCALDROP_REDIS_ADDR"`
	Password     string        `envconfig:"LOCALDROP_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOCALDROP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOCALDROP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOCALDROP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOCALDROP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOCALDROP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOCALDROP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// OTPConfig controls email one-time-passcode issuance.
type OTPConfig struct {
	AllowedDomain string        `envconfig:"LOCALDROP_OTP_ALLOWED_DOMAIN" default:"gmail.com"`
	TTL           time.Duration `envconfig:"LOCALDROP_OTP_TTL" default:"5m"`
	MaxAttempts   int           `envconfig:"LOCALDROP_OTP_MAX_ATTEMPTS" default:"3"`
	CodeLength    int           `envconfig:"LOCALDROP_OTP_CODE_LENGTH" default:"6"`
	Store         string        `envconfig:"LOCALDROP_OTP_STORE" default:"memory"`
	Hash          PasswordConfig
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOCALDROP_ARGON_MEMORY_KB" default:"8192"`
	ArgonTime        int `envconfig:"LOCALDROP_ARGON_TIME" default:"1"`
	ArgonParallelism int `envconfig:"LOCALDROP_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"LOCALDROP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOCALDROP_ARGON_KEY_LEN" default:"32"`
}

// JWTConfig signs the short-lived email verification token.
type JWTConfig struct {
	Secret            string `envconfig:"LOCALDROP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LOCALDROP_JWT_ISSUER" default:"localdrop"`
	ExpirationMinutes int    `envconfig:"LOCALDROP_JWT_EXPIRATION_MINUTES" default:"30"`
}

type MailConfig struct {
	APIKey      string `envconfig:"LOCALDROP_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"LOCALDROP_SENDGRID_FROM_EMAIL"`
	BaseURL     string `envconfig:"LOCALDROP_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

type OAuthConfig struct {
	GoogleClientID     string `envconfig:"LOCALDROP_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"LOCALDROP_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"LOCALDROP_GOOGLE_REDIRECT_URL"`
	ProfileURL         string `envconfig:"LOCALDROP_PROFILE_COMPLETION_URL" default:"/complete-profile"`
	HomeURL            string `envconfig:"LOCALDROP_HOME_URL" default:"/"`
}

// Enabled reports whether the Google provider has client credentials.
func (o OAuthConfig) Enabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"LOCALDROP_GOOGLE_MAPS_API_KEY"`
}

type AuthRateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"LOCALDROP_RATE_LIMIT_OTP_WINDOW" default:"10m"`
	OTPEmailLimit int           `envconfig:"LOCALDROP_RATE_LIMIT_OTP_EMAIL_LIMIT" default:"5"`
	OTPIPLimit    int           `envconfig:"LOCALDROP_RATE_LIMIT_OTP_IP_LIMIT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	// Only postgres can be assembled from the legacy host/user/name parts.
	if db.LegacyHost == "" {
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
	db.Driver = StateBackendPostgres
	return nil
}
