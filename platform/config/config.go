// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// StoreConfig selects the lead store backend.
type StoreConfig interface {
	GetStoreDriver() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// RateLimitConfig provides the intake rate limit window.
type RateLimitConfig interface {
	GetRateLimitWindow() time.Duration
	GetRateLimitMax() int
}

// SchedulerConfig provides settings for the queue backends.
type SchedulerConfig interface {
	GetQueueDriver() string
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetQueuePollInterval() time.Duration
}

// DispatchConfig provides retry and delivery settings for the dispatcher.
type DispatchConfig interface {
	GetDispatchMaxAttempts() int
	GetDispatchRetryBase() time.Duration
	GetDispatchTimeout() time.Duration
	GetStaleQueuedAfter() time.Duration
	GetSweepInterval() time.Duration
}

// IntakeConfig provides settings for lead intake.
type IntakeConfig interface {
	GetDuplicateWindow() time.Duration
	GetLandingDomain() string
}

// BrandsConfig points at the optional brand definitions file.
type BrandsConfig interface {
	GetBrandsFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"

	QueueDriverMemory = "memory"
	QueueDriverRedis  = "redis"
)

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	StoreDriver         string
	CORSAllowAll        bool
	CORSOrigins         []string
	RateLimitWindow     time.Duration
	RateLimitMax        int
	QueueDriver         string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	QueuePollInterval   time.Duration
	DispatchMaxAttempts int
	DispatchRetryBase   time.Duration
	DispatchTimeout     time.Duration
	StaleQueuedAfter    time.Duration
	SweepInterval       time.Duration
	DuplicateWindow     time.Duration
	LandingDomain       string
	BrandsFile          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// StoreConfig implementation
func (c *Config) GetStoreDriver() string { return c.StoreDriver }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// RateLimitConfig implementation
func (c *Config) GetRateLimitWindow() time.Duration { return c.RateLimitWindow }
func (c *Config) GetRateLimitMax() int              { return c.RateLimitMax }

// SchedulerConfig implementation
func (c *Config) GetQueueDriver() string              { return c.QueueDriver }
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetQueuePollInterval() time.Duration { return c.QueuePollInterval }

// DispatchConfig implementation
func (c *Config) GetDispatchMaxAttempts() int         { return c.DispatchMaxAttempts }
func (c *Config) GetDispatchRetryBase() time.Duration { return c.DispatchRetryBase }
func (c *Config) GetDispatchTimeout() time.Duration   { return c.DispatchTimeout }
func (c *Config) GetStaleQueuedAfter() time.Duration  { return c.StaleQueuedAfter }
func (c *Config) GetSweepInterval() time.Duration     { return c.SweepInterval }

// IntakeConfig implementation
func (c *Config) GetDuplicateWindow() time.Duration { return c.DuplicateWindow }
func (c *Config) GetLandingDomain() string          { return c.LandingDomain }

// BrandsConfig implementation
func (c *Config) GetBrandsFile() string { return c.BrandsFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true") || containsWildcard(corsOrigins)

	httpAddr := getEnv("HTTP_ADDR", "")
	if httpAddr == "" {
		httpAddr = ":" + getEnv("PORT", "4000")
	}

	databaseURL := getEnv("DATABASE_URL", "")
	storeDriver := strings.ToLower(getEnv("STORE_DRIVER", ""))
	if storeDriver == "" {
		storeDriver = StoreDriverMemory
		if databaseURL != "" {
			storeDriver = StoreDriverPostgres
		}
	}

	redisURL := getEnv("REDIS_URL", "")
	queueDriver := strings.ToLower(getEnv("QUEUE_DRIVER", ""))
	if queueDriver == "" {
		queueDriver = QueueDriverMemory
		if redisURL != "" {
			queueDriver = QueueDriverRedis
		}
	}

	env := &envParser{}
	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            httpAddr,
		DatabaseURL:         databaseURL,
		StoreDriver:         storeDriver,
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		RateLimitWindow:     env.duration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitMax:        env.integer("RATE_LIMIT_MAX", "30"),
		QueueDriver:         queueDriver,
		RedisURL:            redisURL,
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "leads"),
		AsynqConcurrency:    env.integer("ASYNQ_CONCURRENCY", "1"),
		QueuePollInterval:   env.duration("QUEUE_POLL_INTERVAL", "1s"),
		DispatchMaxAttempts: env.integer("DISPATCH_MAX_ATTEMPTS", "3"),
		DispatchRetryBase:   env.duration("DISPATCH_RETRY_BASE", "1s"),
		DispatchTimeout:     env.duration("DISPATCH_TIMEOUT", "5s"),
		StaleQueuedAfter:    env.duration("STALE_QUEUED_AFTER", "10m"),
		SweepInterval:       env.duration("SWEEP_INTERVAL", "1m"),
		DuplicateWindow:     env.duration("DUPLICATE_WINDOW", "24h"),
		LandingDomain:       getEnv("LANDING_DOMAIN", ""),
		BrandsFile:          getEnv("BRANDS_FILE", ""),
	}

	if err := env.err(); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.QueueDriver {
	case QueueDriverMemory:
	case QueueDriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when QUEUE_DRIVER is redis")
		}
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}

	if cfg.DispatchMaxAttempts < 1 {
		return nil, fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.DispatchRetryBase <= 0 {
		return nil, fmt.Errorf("DISPATCH_RETRY_BASE must be a positive duration")
	}
	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMax < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW and RATE_LIMIT_MAX must be positive")
	}
	if cfg.DispatchTimeout <= 0 {
		return nil, fmt.Errorf("DISPATCH_TIMEOUT must be a positive duration")
	}
	if cfg.StaleQueuedAfter <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("STALE_QUEUED_AFTER and SWEEP_INTERVAL must be positive durations")
	}
	if cfg.AsynqConcurrency < 1 || cfg.QueuePollInterval <= 0 {
		return nil, fmt.Errorf("ASYNQ_CONCURRENCY and QUEUE_POLL_INTERVAL must be positive")
	}
	if cfg.DuplicateWindow < 0 {
		return nil, fmt.Errorf("DUPLICATE_WINDOW must not be negative")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// envParser reads typed variables and remembers every malformed value so
// Load can report them together.
type envParser struct {
	errs []error
}

func (p *envParser) raw(key, fallback string) string {
	if raw := strings.TrimSpace(getEnv(key, fallback)); raw != "" {
		return raw
	}
	return fallback
}

func (p *envParser) duration(key, fallback string) time.Duration {
	raw := p.raw(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return 0
	}
	return d
}

func (p *envParser) integer(key, fallback string) int {
	raw := p.raw(key, fallback)
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return 0
	}
	return n
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
