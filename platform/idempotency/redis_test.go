package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuard(client, 30*time.Second, nil), mr
}

func TestRedisGuardRejectsDuplicateAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = clientA.Close(); _ = clientB.Close() })

	a := NewRedisGuard(clientA, 30*time.Second, nil)
	b := NewRedisGuard(clientB, 30*time.Second, nil)

	_, ok, err := a.TryBegin(ctx, "quotes:create:1:req")
	if err != nil || !ok {
		t.Fatalf("expected first instance to register, ok=%v err=%v", ok, err)
	}
	_, ok, err = b.TryBegin(ctx, "quotes:create:1:req")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second instance to see the duplicate")
	}

	// Another instance cannot free a key it does not hold.
	b.Release(ctx, "quotes:create:1:req", "not-a-token")
	if !mr.Exists(redisKeyPrefix + "quotes:create:1:req") {
		t.Fatal("expected key held by first instance to survive foreign release")
	}
}

func TestRedisGuardKeyExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGuard(t)

	g.TryBegin(ctx, "req")
	if ttl := mr.TTL(redisKeyPrefix + "req"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("expected native TTL of at most 30s, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if _, ok, _ := g.TryBegin(ctx, "req"); !ok {
		t.Fatal("expected key to be reusable after TTL")
	}
}

func TestRedisGuardReleaseAndComplete(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGuard(t)

	token, _, _ := g.TryBegin(ctx, "failed")
	g.Release(ctx, "failed", token)
	if mr.Exists(redisKeyPrefix + "failed") {
		t.Fatal("expected released key to be deleted")
	}

	token, _, _ = g.TryBegin(ctx, "succeeded")
	g.Complete(ctx, "succeeded", token)
	g.Release(ctx, "succeeded", token)
	if !mr.Exists(redisKeyPrefix + "succeeded") {
		t.Fatal("expected completed key to remain until TTL")
	}
}

func TestRedisGuardStaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGuard(t)

	first, ok, err := g.TryBegin(ctx, "slow")
	if err != nil || !ok {
		t.Fatalf("expected first registration, ok=%v err=%v", ok, err)
	}
	mr.FastForward(31 * time.Second)
	second, ok, err := g.TryBegin(ctx, "slow")
	if err != nil || !ok {
		t.Fatalf("expected registration after TTL, ok=%v err=%v", ok, err)
	}

	// The first request finishes late and fails.
	g.Release(ctx, "slow", first)
	if !mr.Exists(redisKeyPrefix + "slow") {
		t.Fatal("expected stale release to leave the new registration in place")
	}
	if _, ok, _ := g.TryBegin(ctx, "slow"); ok {
		t.Fatal("expected key to stay registered for the second request")
	}

	g.Release(ctx, "slow", second)
	if mr.Exists(redisKeyPrefix + "slow") {
		t.Fatal("expected current holder to release the key")
	}
}
