package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by the staff store factory.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the relay.
type Config struct {
	App         AppConfig
	Webhook     WebhookConfig
	Owner       OwnerConfig
	Store       StoreConfig
	Postgres    PostgresConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Logger      LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// WebhookConfig holds the inbound route and the outbound chat sink.
type WebhookConfig struct {
	Path                 string
	SlackURL             string
	NotifyTimeoutSeconds int
}

// OwnerConfig is the identity used when rotation cannot pick anyone.
type OwnerConfig struct {
	DefaultName            string
	DefaultID              string
	RotationTimeoutSeconds int
}

// StoreConfig selects the support_list backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdempotencyConfig controls replay of repeated webhook deliveries.
type IdempotencyConfig struct {
	TTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	if driver != StoreDriverPostgres && driver != StoreDriverSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", driver, StoreDriverPostgres, StoreDriverSQLite)
	}

	port := getEnv("PORT", getEnv("APP_PORT", "5000"))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "owner-relay"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  port,
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Webhook: WebhookConfig{
			Path:                 normalizePath(getEnv("WEBHOOK_PATH", "/webhook")),
			SlackURL:             os.Getenv("SLACK_WEBHOOK_URL"),
			NotifyTimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Owner: OwnerConfig{
			DefaultName:            getEnv("DEFAULT_OWNER_NAME", "user01"),
			DefaultID:              os.Getenv("DEFAULT_OWNER_ID"),
			RotationTimeoutSeconds: getEnvAsInt("ROTATION_TIMEOUT_SECONDS", 5),
		},
		Store: StoreConfig{
			Driver: driver,
		},
		Postgres: PostgresConfig{
			DSN:            postgresDSN(),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "owner-relay.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Idempotency: IdempotencyConfig{
			TTLSeconds: getEnvAsInt("IDEMPOTENCY_TTL_SECONDS", 86400),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "auto")),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return net.JoinHostPort(a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// NotifyTimeout bounds a single call to the chat sink.
func (w WebhookConfig) NotifyTimeout() time.Duration {
	return seconds(w.NotifyTimeoutSeconds)
}

// RotationTimeout bounds a single acquisition transaction.
func (o OwnerConfig) RotationTimeout() time.Duration {
	return seconds(o.RotationTimeoutSeconds)
}

// TTL returns the replay window, zero when replay is disabled.
func (i IdempotencyConfig) TTL() time.Duration {
	return seconds(i.TTLSeconds)
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// postgresDSN prefers POSTGRES_DSN and otherwise assembles one from the
// discrete DB_* variables. It returns "" when neither is present.
func postgresDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, getEnv("DB_PORT", "5432")),
		Path:   "/" + getEnv("DB_DATABASE", "case_system"),
	}
	if user := os.Getenv("DB_USER"); user != "" {
		if pass := os.Getenv("DB_PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	if mode := os.Getenv("DB_SSLMODE"); mode != "" {
		u.RawQuery = url.Values{"sslmode": []string{mode}}.Encode()
	}
	return u.String()
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
