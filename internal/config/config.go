package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string

	RateLimit       int
	RateLimitWindow time.Duration
	RateLimitMode   string
	RateLimitRedis  bool

	IdempotencyEnabled      bool
	IdempotencyRedisEnabled bool
	IdempotencyTTL          time.Duration
	IdempotencyWaitTimeout  time.Duration

	PriceCacheTTL time.Duration

	WebhookURL         string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookPollEvery   time.Duration
	WebhookBatchSize   int

	RepriceQueueKey string

	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		JWTIssuer:               getEnv("JWT_ISSUER", "transport-pricing-service"),
		JWTAudience:             getEnv("JWT_AUDIENCE", "transport-pricing-api"),
		JWTAccessSecret:         os.Getenv("JWT_ACCESS_SECRET"),
		RateLimit:               getEnvInt("RATE_LIMIT", 100),
		RateLimitMode:           strings.ToLower(getEnv("RATE_LIMIT_MODE", "fail_closed")),
		RateLimitRedis:          getEnvBool("RATE_LIMIT_REDIS", true),
		IdempotencyEnabled:      getEnvBool("IDEMPOTENCY_ENABLED", true),
		IdempotencyRedisEnabled: getEnvBool("IDEMPOTENCY_REDIS", true),
		WebhookURL:              os.Getenv("WEBHOOK_URL"),
		WebhookMaxAttempts:      getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookBatchSize:        getEnvInt("WEBHOOK_BATCH_SIZE", 20),
		RepriceQueueKey:         getEnv("REPRICE_QUEUE_KEY", "jobs:reprice"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", "600s"); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getEnvDuration("IDEMPOTENCY_TTL", "300s"); err != nil {
		return nil, err
	}
	if cfg.IdempotencyWaitTimeout, err = getEnvDuration("IDEMPOTENCY_WAIT_TIMEOUT", "2s"); err != nil {
		return nil, err
	}
	if cfg.PriceCacheTTL, err = getEnvDuration("PRICE_CACHE_TTL", "60s"); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = getEnvDuration("WEBHOOK_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.WebhookPollEvery, err = getEnvDuration("WEBHOOK_POLL_EVERY", "500ms"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if c.WebhookURL == "" {
		errs = append(errs, "WEBHOOK_URL is required")
	}
	if c.RateLimit <= 0 {
		errs = append(errs, "RATE_LIMIT must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, "RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RateLimitMode != "fail_open" && c.RateLimitMode != "fail_closed" {
		errs = append(errs, "RATE_LIMIT_MODE must be fail_open or fail_closed")
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, "IDEMPOTENCY_TTL must be > 0")
	}
	if c.IdempotencyWaitTimeout <= 0 {
		errs = append(errs, "IDEMPOTENCY_WAIT_TIMEOUT must be > 0")
	}
	if c.PriceCacheTTL <= 0 {
		errs = append(errs, "PRICE_CACHE_TTL must be > 0")
	}
	if c.WebhookTimeout <= 0 {
		errs = append(errs, "WEBHOOK_TIMEOUT must be > 0")
	}
	if c.WebhookMaxAttempts <= 0 {
		errs = append(errs, "WEBHOOK_MAX_ATTEMPTS must be > 0")
	}
	if c.WebhookBatchSize <= 0 {
		errs = append(errs, "WEBHOOK_BATCH_SIZE must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvDuration accepts Go duration strings and, for parity with the legacy
// deployment env files, bare integers interpreted as seconds.
func getEnvDuration(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
