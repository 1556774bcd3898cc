package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"orcamentos_backend/platform/logger"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idem:"

// RedisGuard shares request keys across instances. Each key is a redislock
// lock with the guard TTL, so Redis expires it natively and a Release only
// deletes the entry this registration still owns.
type RedisGuard struct {
	locker *redislock.Client
	ttl    time.Duration
	log    *logger.Logger

	mu sync.Mutex
	// held is keyed by lock token; a key registered again after expiry gets
	// a new entry instead of replacing the old one.
	held map[string]*redislock.Lock
}

// NewRedisGuard creates a guard on top of an existing Redis client.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisGuard{
		locker: redislock.New(client),
		ttl:    ttl,
		log:    log,
		held:   make(map[string]*redislock.Lock),
	}
}

// TryBegin implements Guard.
func (g *RedisGuard) TryBegin(ctx context.Context, key string) (string, bool, error) {
	lock, err := g.locker.Obtain(ctx, redisKeyPrefix+key, g.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("register request key: %w", err)
	}

	token := lock.Token()
	g.mu.Lock()
	g.held[token] = lock
	g.mu.Unlock()
	return token, true, nil
}

// Release implements Guard. redislock only deletes the Redis key while it
// still carries this lock's token.
func (g *RedisGuard) Release(ctx context.Context, key, token string) {
	lock := g.take(key, token)
	if lock == nil {
		return
	}
	// The request context may already be cancelled on failure paths.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		g.log.Warn("failed to release request key", "key", key, "error", err)
	}
}

// Complete implements Guard. The Redis key is left to expire.
func (g *RedisGuard) Complete(_ context.Context, key, token string) {
	g.take(key, token)
}

func (g *RedisGuard) take(key, token string) *redislock.Lock {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.held[token]
	if !ok || lock.Key() != redisKeyPrefix+key {
		return nil
	}
	delete(g.held, token)
	return lock
}
