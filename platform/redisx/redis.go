// Package redisx builds the shared Redis connection used by the request
// deduplicator and the asynq task client.
package redisx

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"orcamentos_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// Options parses REDIS_URL and applies the TLS override.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig != nil {
			opt.TLSConfig = opt.TLSConfig.Clone()
		} else {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return opt, nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
