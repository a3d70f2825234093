package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key does not exist or has
// expired. Backends translate their own miss signal (e.g. redis.Nil)
// into this sentinel so the Coordinator can tell misses from outages.
var ErrMiss = errors.New("cache: miss")

// Store is the backend contract behind the Coordinator. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrMiss when absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores val under key for ttl. A non-positive ttl means the
	// entry does not expire.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Del removes the given keys; missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	// DelPattern removes every key matching the glob pattern and
	// reports how many were removed.
	DelPattern(ctx context.Context, pattern string) (int, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
