// Package config provides environment-driven configuration for the neon server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Filter store backends.
const (
	FilterStoreMemory   = "memory"
	FilterStorePostgres = "postgres"
	FilterStoreBadger   = "badger"
)

// Config holds all application configuration values.
type Config struct {
	DatabaseURL    Secret
	DBMaxConns     int
	Port           string
	ListenHost     string
	MetricsPort    string
	CORSOrigins    []string
	LogLevel       string
	LogFormat      string
	FilterStore    string
	BadgerPath     string
	WidgetsFile    string
	AuthDisabled   bool
	SearchLimit    int
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  Secret(envOrDefault("DATABASE_URL", "")),
		Port:         envOrDefault("PORT", "3040"),
		ListenHost:   envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort:  envOrDefault("METRICS_PORT", "9092"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		LogFormat:    envOrDefault("LOG_FORMAT", "json"),
		BadgerPath:   envOrDefault("BADGER_PATH", ""),
		WidgetsFile:  envOrDefault("WIDGETS_FILE", "widgets.yaml"),
		AuthDisabled: envOrDefault("AUTH_DISABLED", "false") == "true",
	}

	defaultStore := FilterStoreMemory
	if cfg.DatabaseURL.Value() != "" {
		defaultStore = FilterStorePostgres
	}
	cfg.FilterStore = envOrDefault("FILTER_STORE", defaultStore)

	var err error

	if cfg.DBMaxConns, err = intEnv("DB_MAX_CONNS", 20, 2, 200); err != nil {
		return nil, err
	}

	if cfg.SearchLimit, err = intEnv("SEARCH_LIMIT", 10000, 1, 50000); err != nil {
		return nil, err
	}

	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 40, 1, 10000); err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(envOrDefault("RATE_LIMIT_RPS", "20"), 64)
	if err != nil || rps <= 0 || rps > 10000 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be a number between 0 and 10000")
	}
	cfg.RateLimitRPS = rps

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

// HasDatabase reports whether a PostgreSQL URL is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL.Value() != ""
}

func intEnv(key string, fallback, lo, hi int) (int, error) {
	v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}

	return v, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
