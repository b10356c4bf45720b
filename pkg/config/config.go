package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Backend      BackendConfig
	Auth         AuthConfig
	Redis        RedisConfig
	DB           DBConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("either PASALMART_REDIS_URL or PASALMART_USE_SQLITE is required for durable state")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PASALMART_APP_ENV" required:"true"`
	Port         string `envconfig:"PASALMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PASALMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PASALMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the order-management backend that fronts the
// payment gateway.
type BackendConfig struct {
	BaseURL string        `envconfig:"PASALMART_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"PASALMART_BACKEND_TIMEOUT" default:"10s"`
}

// AuthConfig describes the external login entry point and the path the
// identity provider redirects back to.
type AuthConfig struct {
	LoginURL     string `envconfig:"PASALMART_AUTH_LOGIN_URL" required:"true"`
	CallbackPath string `envconfig:"PASALMART_AUTH_CALLBACK_PATH" default:"/auth/callback"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PASALMART_REDIS_URL"`
	Address      string        `envconfig:"PASALMART_REDIS_ADDR"`
	Password     string        `envconfig:"PASALMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"PASALMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PASALMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PASALMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PASALMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PASALMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PASALMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	Driver string `envconfig:"PASALMART_DB_DRIVER" default:"sqlite"`
	// Path is the sqlite file holding device-local state.
	Path string `envconfig:"PASALMART_DB_PATH" default:"pasalmart.db"`
	// DSN is used when the driver is postgres.
	DSN string `envconfig:"PASALMART_DB_DSN"`

	MaxOpenConns    int           `envconfig:"PASALMART_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"PASALMART_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"PASALMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PASALMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite bool `envconfig:"PASALMART_USE_SQLITE" default:"true"`
}

type CheckoutConfig struct {
	VerifyMaxRetries uint64        `envconfig:"PASALMART_CHECKOUT_VERIFY_MAX_RETRIES" default:"2"`
	VerifyBackoff    time.Duration `envconfig:"PASALMART_CHECKOUT_VERIFY_BACKOFF" default:"200ms"`
}
