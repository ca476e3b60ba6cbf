// Package cache implements the session cache: TTL-bounded storage of prior
// generation and evaluation results keyed by request fingerprint.
package cache

import (
	"context"
	"time"
)

// Entry is a cached result. Entries are immutable once written; a fresh
// result replaces the entry wholesale with a new creation timestamp.
type Entry struct {
	Key       string        `json:"key"`
	Payload   []byte        `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is stale at the given instant. Expiry is
// inclusive: an entry exactly TTL old is already expired.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(e.TTL))
}

// SessionCache is the store consulted by the orchestrator before any
// expensive work. The cache is an optimization, never a correctness
// dependency: backends report errors so callers can log and degrade to a
// miss, but never fail the request on them.
type SessionCache interface {
	// Get returns the live entry for key, or found=false on miss or expiry.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put atomically replaces any entry for key.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Close releases backend resources.
	Close() error
}
