// Package cache provides pluggable caching for expensive lottery
// artifacts: seeded rank orders, separation graph snapshots, and
// rendered visualizations.
//
// Three backends are provided:
//   - FileCache: directory-backed, used by the CLI
//   - RedisCache: shared backend for the HTTP server
//   - NullCache: disables caching entirely
//
// Keys are produced by a Keyer so that callers never concatenate raw
// strings; see keys.go.
package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value from the cache.
	// The second return value reports whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	// A zero TTL stores the value without expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}
