package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGuard() (*MemoryGuard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewMemoryGuard(30*time.Second, WithClock(clock.Now)), clock
}

func TestMemoryGuardRejectsDuplicateWithinTTL(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGuard()

	if _, ok, _ := g.TryBegin(ctx, "req-1"); !ok {
		t.Fatal("expected first registration to succeed")
	}
	clock.Advance(29 * time.Second)
	if _, ok, _ := g.TryBegin(ctx, "req-1"); ok {
		t.Fatal("expected duplicate inside TTL to be rejected")
	}
}

func TestMemoryGuardExpiresFromFirstRegistration(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGuard()

	g.TryBegin(ctx, "req-1")
	clock.Advance(20 * time.Second)
	g.TryBegin(ctx, "req-1") // rejected, must not extend the window
	clock.Advance(10 * time.Second)

	if _, ok, _ := g.TryBegin(ctx, "req-1"); !ok {
		t.Fatal("expected key to expire 30s after first registration")
	}
}

func TestMemoryGuardReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGuard()

	token, _, _ := g.TryBegin(ctx, "req-1")
	g.Release(ctx, "req-1", token)

	if _, ok, _ := g.TryBegin(ctx, "req-1"); !ok {
		t.Fatal("expected released key to be reusable")
	}
}

func TestMemoryGuardCompletedKeySurvivesRelease(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGuard()

	token, _, _ := g.TryBegin(ctx, "req-1")
	g.Complete(ctx, "req-1", token)
	g.Release(ctx, "req-1", token)

	if _, ok, _ := g.TryBegin(ctx, "req-1"); ok {
		t.Fatal("expected completed key to stay registered")
	}
	clock.Advance(31 * time.Second)
	if _, ok, _ := g.TryBegin(ctx, "req-1"); !ok {
		t.Fatal("expected completed key to expire after TTL")
	}
}

func TestMemoryGuardStaleTokenCannotReleaseNewHolder(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGuard()

	first, _, _ := g.TryBegin(ctx, "req-1")
	clock.Advance(31 * time.Second)
	second, ok, _ := g.TryBegin(ctx, "req-1")
	if !ok {
		t.Fatal("expected key to register again after TTL")
	}
	if second == first {
		t.Fatal("expected a fresh token for the second registration")
	}

	g.Release(ctx, "req-1", first)
	g.Complete(ctx, "req-1", first)
	if _, ok, _ := g.TryBegin(ctx, "req-1"); ok {
		t.Fatal("expected stale token to leave the new registration in place")
	}

	g.Release(ctx, "req-1", second)
	if _, ok, _ := g.TryBegin(ctx, "req-1"); !ok {
		t.Fatal("expected current token to release the key")
	}
}

func TestMemoryGuardSingleWinnerUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(time.Minute)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := g.TryBegin(ctx, "same-key"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestMemoryGuardDistinctKeysDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGuard()

	for _, key := range []string{"a", "b", "c"} {
		if _, ok, _ := g.TryBegin(ctx, key); !ok {
			t.Fatalf("expected key %q to register", key)
		}
	}
	if g.Len() != 3 {
		t.Fatalf("expected 3 live keys, got %d", g.Len())
	}
}

func TestKeyIgnoresBlankRequestID(t *testing.T) {
	if k := Key("quotes:create", "7", "  "); k != "" {
		t.Fatalf("expected empty key, got %q", k)
	}
	if k := Key("quotes:create", "7", "abc"); k != "quotes:create:7:abc" {
		t.Fatalf("unexpected key %q", k)
	}
}
