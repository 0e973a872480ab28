// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	ServerPort     string
	AllowedOrigins string
	JWTSecret      string

	RedisURL       string
	IdempotencyTTL time.Duration

	KafkaAddr     string
	AMQPURL       string
	OutboxTopic   string
	OutboxRetries int

	LockTimeout       time.Duration
	CreateMaxAttempts int
	LogLevel          string
}

// Load builds a Config from environment variables, applying defaults for
// anything unset. Callers load .env first if they want it honoured.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerPort:     getenv("SERVER_PORT", "8080"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaAddr:      os.Getenv("KAFKA_ADDR"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		OutboxTopic:    getenv("OUTBOX_TOPIC", "order.events"),
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.LockTimeout, err = durationEnv("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CreateMaxAttempts, err = intEnv("CREATE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.OutboxRetries, err = intEnv("OUTBOX_MAX_RETRIES", 10); err != nil {
		return nil, err
	}
	maxConns, err := intEnv("DB_MAX_CONNS", 0)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)

	if cfg.CreateMaxAttempts < 1 {
		return nil, fmt.Errorf("CREATE_MAX_ATTEMPTS must be at least 1, got %d", cfg.CreateMaxAttempts)
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", cfg.LockTimeout)
	}
	return cfg, nil
}

// RequireDatabase returns an error when DATABASE_URL is missing.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
