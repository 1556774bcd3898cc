// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
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
	GetDatabaseMaxConns() int32
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// RedisConfig provides settings for the shared Redis connection.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq task client.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// IdempotencyConfig provides settings for create-request deduplication.
type IdempotencyConfig interface {
	GetIdempotencyTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	StorageDriver    string
	DatabaseURL      string
	DatabaseMaxConns int32
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RateLimitRPS     float64
	RateLimitBurst   int
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	IdempotencyTTL   time.Duration
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string      { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32 { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64  { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int    { return c.RateLimitBurst }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// IdempotencyConfig implementation
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }

// UsesMemoryStorage reports whether quotes are kept in process instead of Postgres.
func (c *Config) UsesMemoryStorage() bool {
	return strings.EqualFold(c.StorageDriver, "memory")
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:    getEnv("STORAGE_DRIVER", "postgres"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: int32(mustInt64(getEnv("DATABASE_MAX_CONNS", "25"))),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitRPS:     mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:   int(mustInt64(getEnv("RATE_LIMIT_BURST", "40"))),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "quotes"),
		AsynqConcurrency: int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		IdempotencyTTL:   mustDuration(getEnv("IDEMPOTENCY_TTL", "30s")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.UsesMemoryStorage() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be a positive duration")
	}
	if c.DatabaseMaxConns < 1 {
		c.DatabaseMaxConns = 25
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
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
