// Package kvstore abstracts the small persistent key-value records careergate
// keeps (rate-limit windows, anonymous session ids, order snapshots) from the
// concrete storage technology, so the rate limiter and session cache stay
// unit-testable without external infrastructure.
package kvstore

import (
	"context"
	"time"
)

// Store is a minimal get/set/delete key-value store. A zero TTL means the
// value does not expire.
type Store interface {
	// Get returns the value for key. The second return value reports whether
	// the key exists; a missing key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key, expiring after ttl if ttl > 0.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}
