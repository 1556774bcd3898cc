package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
	done      bool
}

// MemoryGuard is a process-local Guard backed by a mutex-guarded map.
// Expired entries are swept lazily on registration.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption customizes a MemoryGuard.
type MemoryOption func(*MemoryGuard)

// WithClock replaces time.Now, used by tests to move time deterministically.
func WithClock(now func() time.Time) MemoryOption {
	return func(g *MemoryGuard) { g.now = now }
}

// NewMemoryGuard creates a guard whose keys live for ttl.
func NewMemoryGuard(ttl time.Duration, opts ...MemoryOption) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &MemoryGuard{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryBegin implements Guard.
func (g *MemoryGuard) TryBegin(_ context.Context, key string) (string, bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)
	if _, exists := g.entries[key]; exists {
		return "", false, nil
	}
	token := uuid.NewString()
	g.entries[key] = memoryEntry{token: token, expiresAt: now.Add(g.ttl)}
	return token, true, nil
}

// Release implements Guard. Completed keys are kept until they expire.
func (g *MemoryGuard) Release(_ context.Context, key, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.entries[key]; ok && entry.token == token && !entry.done {
		delete(g.entries, key)
	}
}

// Complete implements Guard.
func (g *MemoryGuard) Complete(_ context.Context, key, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.entries[key]; ok && entry.token == token {
		entry.done = true
		g.entries[key] = entry
	}
}

// Len reports the number of live entries.
func (g *MemoryGuard) Len() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(now)
	return len(g.entries)
}

func (g *MemoryGuard) sweepLocked(now time.Time) {
	for key, entry := range g.entries {
		if !now.Before(entry.expiresAt) {
			delete(g.entries, key)
		}
	}
}
