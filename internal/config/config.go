// Package config reads runtime settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	HTTPAddr       string
	StoreDriver    string
	DSN            string
	MigrateOnStart bool
	SeedFile       string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	OutboxInterval time.Duration
	StorageTimeout time.Duration
	CatalogTimeout time.Duration

	CORSOrigins []string
	GinMode     string
	LogLevel    string
}

// Load reads the configuration. It fails when a required key is missing or
// a value cannot be parsed.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, relying on process environment")
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverMySQL)),
		DSN:            os.Getenv("DB_DSN_PRIMARY"),
		SeedFile:       os.Getenv("SEED_FILE"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "order-events"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var errs []error
	var err error
	if cfg.MigrateOnStart, err = getBool("MIGRATE_ON_START", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 72*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_INTERVAL", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.StorageTimeout, err = getDuration("STORAGE_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.CatalogTimeout, err = getDuration("CATALOG_TIMEOUT", 2*time.Second); err != nil {
		errs = append(errs, err)
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		if cfg.DSN == "" {
			errs = append(errs, errors.New("DB_DSN_PRIMARY is required when STORE_DRIVER=mysql"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, cfg.StoreDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
