// Package idempotency guards side-effecting requests against client retries.
//
// A Guard registers a client-supplied request key for a bounded TTL measured
// from first registration. While the key is registered, further TryBegin calls
// for it fail. Release forgets a key so a failed request can be retried at
// once; Complete keeps the key until its TTL lapses so retries of a request
// that already succeeded are rejected.
package idempotency

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL bounds how long a request key is remembered.
const DefaultTTL = 30 * time.Second

// Guard is implemented by MemoryGuard and RedisGuard.
//
// Each successful TryBegin returns a token naming that registration. Release
// and Complete act only when the token still matches, so a caller whose key
// expired and was registered again by someone else cannot disturb the new
// holder.
type Guard interface {
	// TryBegin registers key. It returns false when key is already registered
	// and has not expired.
	TryBegin(ctx context.Context, key string) (token string, ok bool, err error)
	// Release forgets key. Safe to call for keys that expired, were never
	// registered or are now held under another token.
	Release(ctx context.Context, key, token string)
	// Complete marks the guarded operation as done; key stays registered
	// until its TTL expires.
	Complete(ctx context.Context, key, token string)
}

// Key builds a namespaced guard key. An empty request id yields "" which
// callers treat as "no deduplication".
func Key(scope string, tenant string, requestID string) string {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ""
	}
	return scope + ":" + tenant + ":" + requestID
}
