package ports

import (
	"context"
	"time"
)

// KeyValueStore is the shared cache capability. Every operation is atomic
// at the single-key level. A missing key is reported through the boolean
// results, never as an error; errors mean the store itself failed.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent writes only when key does not exist and reports whether it wrote.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime, or zero when the key is missing or
	// has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// CounterStore holds fixed-window counters.
type CounterStore interface {
	// IncrementBelow atomically creates the counter at 1 with the given
	// window, or increments it while it is below limit. A counter already at
	// limit is left untouched and allowed is false. The window expiry is set
	// only on creation.
	IncrementBelow(ctx context.Context, key string, limit int64, window time.Duration) (count int64, allowed bool, err error)
}

// CacheStore is the full capability handed to the cache-backed components.
type CacheStore interface {
	KeyValueStore
	CounterStore
}
