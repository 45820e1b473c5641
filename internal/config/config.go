package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Import   ImportConfig
	Cache    CacheConfig
	Notify   NotifyConfig
	Janitor  JanitorConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// DevTokens enables the unauthenticated token endpoint.
	DevTokens bool
}

type DatabaseConfig struct {
	Host              string
	Port              string
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MaxConns          int
	ConnectRetries    int
	ConnectRetryDelay time.Duration
}

type JWTConfig struct {
	Secret      string
	Issuer      string
	ExpiryHours int
}

type ImportConfig struct {
	MaxFileSize     int64 // bytes
	BatchInsertSize int
}

type CacheConfig struct {
	// MaxAge bounds staleness when a change notification is lost. Zero
	// keeps bundles until invalidated.
	MaxAge      time.Duration
	Concurrency int
}

type NotifyConfig struct {
	Enabled       bool
	Channel       string
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// JanitorConfig drives the expired idempotency key sweep.
type JanitorConfig struct {
	Interval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			DevTokens:       getBoolEnv("SERVER_DEV_TOKENS", true),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnv("DB_PORT", "5432"),
			User:              getEnv("DB_USER", "incentive"),
			Password:          getEnv("DB_PASSWORD", "incentive_dev_password"),
			DBName:            getEnv("DB_NAME", "incentive"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          getIntEnv("DB_MAX_CONNS", 20),
			ConnectRetries:    getIntEnv("DB_CONNECT_RETRIES", 10),
			ConnectRetryDelay: getDurationEnv("DB_CONNECT_RETRY_DELAY", 3*time.Second),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Issuer:      getEnv("JWT_ISSUER", "incentive-engine"),
			ExpiryHours: getIntEnv("JWT_EXPIRY_HOURS", 24),
		},
		Import: ImportConfig{
			MaxFileSize:     int64(getIntEnv("IMPORT_MAX_SIZE_MB", 10)) * 1024 * 1024,
			BatchInsertSize: getIntEnv("IMPORT_BATCH_INSERT_SIZE", 1000),
		},
		Cache: CacheConfig{
			MaxAge:      getDurationEnv("CACHE_MAX_AGE", 15*time.Minute),
			Concurrency: getIntEnv("CACHE_CONCURRENCY", 4),
		},
		Notify: NotifyConfig{
			Enabled:       getBoolEnv("NOTIFY_ENABLED", true),
			Channel:       getEnv("NOTIFY_CHANNEL", "metrics_changed"),
			RetryBaseWait: getDurationEnv("NOTIFY_RETRY_BASE_WAIT", time.Second),
			RetryMaxWait:  getDurationEnv("NOTIFY_RETRY_MAX_WAIT", 5*time.Minute),
		},
		Janitor: JanitorConfig{
			Interval: getDurationEnv("IDEMPOTENCY_SWEEP_INTERVAL", time.Hour),
		},
	}
}

// DSN returns the Postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
