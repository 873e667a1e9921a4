package application

import (
	"context"
	"fmt"
	"time"

	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

const (
	DefaultProcessedRetention = 24 * time.Hour
	DefaultClaimTTL           = 5 * time.Minute
)

type IdempotencyConfig struct {
	Retention time.Duration
	ClaimTTL  time.Duration
}

// IdempotencyGuard records which external events have been applied.
// Markers live under webhook:{id}; in-progress claims under webhook:claim:{id}.
type IdempotencyGuard struct {
	store ports.KeyValueStore
	cfg   IdempotencyConfig
}

func NewIdempotencyGuard(store ports.KeyValueStore, cfg IdempotencyConfig) *IdempotencyGuard {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultProcessedRetention
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	return &IdempotencyGuard{store: store, cfg: cfg}
}

func processedKey(eventID string) string { return "webhook:" + eventID }
func claimKey(eventID string) string     { return "webhook:claim:" + eventID }

func (g *IdempotencyGuard) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	_, found, err := g.store.Get(ctx, processedKey(eventID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return found, nil
}

// MarkProcessed must only be called after the event's mutation succeeded.
func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, eventID string) error {
	if err := g.store.SetWithExpiry(ctx, processedKey(eventID), []byte("processed"), g.cfg.Retention); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Claim takes the short-lived processing lock for eventID. Only the caller
// that gets true may run the mutation.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := g.store.SetIfAbsent(ctx, claimKey(eventID), []byte("1"), g.cfg.ClaimTTL)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if _, err := g.store.Delete(ctx, claimKey(eventID)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Remaining reports how long the processed marker for eventID is retained.
func (g *IdempotencyGuard) Remaining(ctx context.Context, eventID string) (time.Duration, error) {
	ttl, err := g.store.TTL(ctx, processedKey(eventID))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return ttl, nil
}
