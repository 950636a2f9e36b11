// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/spf13/viper"
)

const (
	AuthModeSupabase = "supabase"
	AuthModeJWT      = "jwt"
)

type Config struct {
	HTTPPort string
	GRPCPort string
	LogLevel string

	TossSecretKey string
	TossAPIBase   string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	MigrationsPath string

	CatalogDriver         string
	CatalogDBPath         string
	CatalogMigrationsPath string
	CatalogLookupTimeout  time.Duration

	AuthMode          string
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	RedisAddr     string
	RedisPassword string
	ClaimTTL      time.Duration

	KafkaBrokers []string

	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration

	RateRPS   float64
	RateBurst int

	TrustProxyHeaders bool

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50061")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("TOSS_API_BASE", "https://api.tosspayments.com")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "woody")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MIGRATIONS_PATH", "internal/repository/migrations")

	v.SetDefault("CATALOG_DRIVER", "postgres")
	v.SetDefault("CATALOG_DB_PATH", "catalog.db")
	v.SetDefault("CATALOG_MIGRATIONS_PATH", "")
	v.SetDefault("CATALOG_LOOKUP_TIMEOUT", "2s")

	v.SetDefault("AUTH_MODE", AuthModeSupabase)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CLAIM_TTL", "2m")

	v.SetDefault("KAFKA_BROKERS", "")

	v.SetDefault("RECONCILE_INTERVAL", "1m")
	v.SetDefault("RECONCILE_GRACE", "2m")

	v.SetDefault("RATE_RPS", 5)
	v.SetDefault("RATE_BURST", 10)
	v.SetDefault("TRUST_PROXY_HEADERS", false)

	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 1<<20) // 1MB
}

// Load builds the configuration from environment variables over built-in
// defaults. An empty TOSS_SECRET_KEY is allowed; confirmations then fail
// with a configuration error instead of the process refusing to start.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		HTTPPort: v.GetString("HTTP_PORT"),
		GRPCPort: v.GetString("GRPC_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		TossSecretKey: v.GetString("TOSS_SECRET_KEY"),
		TossAPIBase:   v.GetString("TOSS_API_BASE"),

		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetInt("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSSLMode:      v.GetString("DB_SSLMODE"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		CatalogDriver:         strings.ToLower(v.GetString("CATALOG_DRIVER")),
		CatalogDBPath:         v.GetString("CATALOG_DB_PATH"),
		CatalogMigrationsPath: v.GetString("CATALOG_MIGRATIONS_PATH"),
		CatalogLookupTimeout:  v.GetDuration("CATALOG_LOOKUP_TIMEOUT"),

		AuthMode:          strings.ToLower(v.GetString("AUTH_MODE")),
		SupabaseURL:       v.GetString("SUPABASE_URL"),
		SupabaseAnonKey:   v.GetString("SUPABASE_ANON_KEY"),
		SupabaseJWTSecret: v.GetString("SUPABASE_JWT_SECRET"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		ClaimTTL:      v.GetDuration("CLAIM_TTL"),

		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),

		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		ReconcileGrace:    v.GetDuration("RECONCILE_GRACE"),

		RateRPS:   v.GetFloat64("RATE_RPS"),
		RateBurst: v.GetInt("RATE_BURST"),

		TrustProxyHeaders: v.GetBool("TRUST_PROXY_HEADERS"),

		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		MaxRequestBodySize: v.GetInt64("MAX_REQUEST_BODY_SIZE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.AuthMode {
	case AuthModeSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("AUTH_MODE=supabase requires SUPABASE_URL and SUPABASE_ANON_KEY"))
		}
	case AuthModeJWT:
		if c.SupabaseJWTSecret == "" {
			errs = append(errs, errors.New("AUTH_MODE=jwt requires SUPABASE_JWT_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}

	switch c.CatalogDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_DRIVER %q", c.CatalogDriver))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("RATE_RPS and RATE_BURST must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) OrdersCredentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		SSLMode:           c.DBSSLMode,
		MigrationsDirPath: c.MigrationsPath,
	}
}

// CatalogDSN points the catalog at the orders database for postgres and at a
// local file for sqlite.
func (c *Config) CatalogDSN() string {
	if c.CatalogDriver == "sqlite" {
		return c.CatalogDBPath
	}
	return c.OrdersCredentials().DSN()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
