package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

// DefaultComputeTimeout bounds a shared compute once it no longer follows
// the context of the request that started it.
const DefaultComputeTimeout = 30 * time.Second

type ReadThroughConfig struct {
	// FailClosed surfaces store errors instead of computing directly.
	FailClosed bool
	// ComputeTimeout bounds a shared compute. Zero means DefaultComputeTimeout.
	ComputeTimeout time.Duration
}

// ReadThroughCache stores JSON-encoded results of an expensive computation.
// Concurrent misses on one key within a process share a single compute.
type ReadThroughCache[T any] struct {
	store   ports.KeyValueStore
	cfg     ReadThroughConfig
	metrics ports.Metrics
	group   singleflight.Group
}

func NewReadThroughCache[T any](store ports.KeyValueStore, cfg ReadThroughConfig, metrics ports.Metrics) *ReadThroughCache[T] {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	return &ReadThroughCache[T]{store: store, cfg: cfg, metrics: metrics}
}

type computed[T any] struct {
	value  T
	cached bool
}

// GetOrCompute returns the cached value under key, or runs compute, stores
// the result for ttl and returns it with cached=false. Compute errors are
// returned as-is and never stored.
func (c *ReadThroughCache[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if ttl <= 0 {
		return zero, false, fmt.Errorf("%w: cache ttl must be positive", domain.ErrInvalidInput)
	}

	if value, hit, err := c.lookup(ctx, key); err != nil {
		return zero, false, err
	} else if hit {
		return value, true, nil
	}

	// The flight outlives the caller that started it; each caller stops
	// waiting when its own context ends.
	flight := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
		defer cancel()

		// Another flight may have filled the entry while this one queued.
		if value, hit, err := c.lookup(flightCtx, key); err != nil {
			return nil, err
		} else if hit {
			return computed[T]{value: value, cached: true}, nil
		}

		value, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.put(flightCtx, key, value, ttl)
		return computed[T]{value: value}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return zero, false, res.Err
		}
		out := res.Val.(computed[T])
		return out.value, out.cached, nil
	}
}

func (c *ReadThroughCache[T]) lookup(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		if c.cfg.FailClosed {
			return zero, false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		logWarn(ctx, "cache read failed, computing directly", "cache_lookup",
			"key", key,
			"error", err,
		)
		return zero, false, nil
	}
	if !found {
		c.metrics.CacheLookup(key, false)
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		logWarn(ctx, "discarding undecodable cache entry", "cache_lookup",
			"key", key,
			"error", err,
		)
		c.metrics.CacheLookup(key, false)
		return zero, false, nil
	}
	c.metrics.CacheLookup(key, true)
	return value, true, nil
}

func (c *ReadThroughCache[T]) put(ctx context.Context, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logWarn(ctx, "cache encode failed", "cache_store", "key", key, "error", err)
		return
	}
	if err := c.store.SetWithExpiry(ctx, key, raw, ttl); err != nil {
		logWarn(ctx, "cache write failed", "cache_store", "key", key, "error", err)
	}
}

// Invalidate removes key so the next read recomputes.
func (c *ReadThroughCache[T]) Invalidate(ctx context.Context, key string) (bool, error) {
	deleted, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return deleted, nil
}
