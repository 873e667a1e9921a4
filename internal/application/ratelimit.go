package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

// IdentifierKind selects which part of the request identity scopes a limit.
type IdentifierKind string

const (
	// IdentifyOrigin keys the counter on the caller's network origin.
	IdentifyOrigin  IdentifierKind = "origin"
	// IdentifySubject keys the counter on a declared identifier such as an email.
	IdentifySubject IdentifierKind = "subject"
)

// minWindow is the shortest window the store can express as a key expiry.
const minWindow = time.Second

// RateLimitRule is one action's fixed-window budget.
type RateLimitRule struct {
	Prefix      string
	MaxRequests int64
	Window      time.Duration
	Identifier  IdentifierKind
}

func (r RateLimitRule) Validate() error {
	if strings.TrimSpace(r.Prefix) == "" {
		return fmt.Errorf("%w: prefix is required", domain.ErrInvalidRateLimitConfig)
	}
	if r.MaxRequests <= 0 {
		return fmt.Errorf("%w: %s: max requests must be positive", domain.ErrInvalidRateLimitConfig, r.Prefix)
	}
	if r.Window < minWindow {
		return fmt.Errorf("%w: %s: window must be at least one second", domain.ErrInvalidRateLimitConfig, r.Prefix)
	}
	switch r.Identifier {
	case IdentifyOrigin, IdentifySubject:
		return nil
	default:
		return fmt.Errorf("%w: %s: unknown identifier kind %q", domain.ErrInvalidRateLimitConfig, r.Prefix, r.Identifier)
	}
}

// RequestIdentity is the normalized caller context a limit is resolved against.
type RequestIdentity struct {
	Origin  string
	Subject string
}

func (id RequestIdentity) resolve(kind IdentifierKind) (string, error) {
	var value string
	switch kind {
	case IdentifyOrigin:
		value = id.Origin
	case IdentifySubject:
		value = id.Subject
	default:
		return "", fmt.Errorf("%w: unknown identifier kind %q", domain.ErrInvalidRateLimitConfig, kind)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: missing %s identifier", domain.ErrInvalidInput, kind)
	}
	return value, nil
}

// Decision reports the outcome of a limit check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// RateLimitKey builds the store key for an action prefix and identifier.
func RateLimitKey(prefix, identifier string) string {
	return "rate_limit:" + prefix + ":" + identifier
}

type RateLimitStore interface {
	ports.CounterStore
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) (bool, error)
}

type RateLimiterConfig struct {
	// FailOpen admits requests when the store is unreachable. The default
	// rejects them with domain.ErrStoreUnavailable.
	FailOpen bool
}

// RateLimiter is a fixed-window counter over the shared store. A window
// starts on the first request and never moves, so up to twice the limit can
// pass across a window boundary.
type RateLimiter struct {
	store   RateLimitStore
	cfg     RateLimiterConfig
	metrics ports.Metrics
}

func NewRateLimiter(store RateLimitStore, cfg RateLimiterConfig, metrics ports.Metrics) *RateLimiter {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &RateLimiter{store: store, cfg: cfg, metrics: metrics}
}

// Allow admits the request if the counter at key is below maxRequests.
// Denied calls leave the counter and its expiry untouched.
func (l *RateLimiter) Allow(ctx context.Context, key string, maxRequests int64, window time.Duration) (bool, error) {
	if maxRequests <= 0 {
		return false, fmt.Errorf("%w: max requests must be positive", domain.ErrInvalidRateLimitConfig)
	}
	if window < minWindow {
		return false, fmt.Errorf("%w: window must be at least one second", domain.ErrInvalidRateLimitConfig)
	}
	prefix := keyPrefix(key)
	_, allowed, err := l.store.IncrementBelow(ctx, key, maxRequests, window)
	if err != nil {
		if l.cfg.FailOpen {
			logWarn(ctx, "rate-limit store unavailable, admitting request", "rate_limit",
				"key", key,
				"error", err,
			)
			l.metrics.RateLimitFailOpen(prefix)
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	l.metrics.RateLimitDecision(prefix, allowed)
	return allowed, nil
}

// keyPrefix returns the action part of a raw limiter key, used as the
// metrics label so identifiers never become label values.
func keyPrefix(key string) string {
	key = strings.TrimPrefix(key, "rate_limit:")
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return key
}

// Check resolves rule against identity and applies the limit.
func (l *RateLimiter) Check(ctx context.Context, rule RateLimitRule, identity RequestIdentity) (Decision, error) {
	if err := rule.Validate(); err != nil {
		return Decision{}, err
	}
	identifier, err := identity.resolve(rule.Identifier)
	if err != nil {
		return Decision{}, err
	}
	key := RateLimitKey(rule.Prefix, identifier)

	count, allowed, err := l.store.IncrementBelow(ctx, key, rule.MaxRequests, rule.Window)
	if err != nil {
		if l.cfg.FailOpen {
			logWarn(ctx, "rate-limit store unavailable, admitting request", "rate_limit",
				"prefix", rule.Prefix,
				"error", err,
			)
			l.metrics.RateLimitFailOpen(rule.Prefix)
			return Decision{Allowed: true, Limit: rule.MaxRequests}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	l.metrics.RateLimitDecision(rule.Prefix, allowed)

	decision := Decision{Allowed: allowed, Count: count, Limit: rule.MaxRequests}
	if allowed {
		return decision, nil
	}

	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = rule.Window
	}
	decision.RetryAfter = ttl
	logWarn(ctx, "rate limit exceeded", "rate_limit",
		"prefix", rule.Prefix,
		"count", count,
		"retry_after_seconds", int64(ttl.Round(time.Second)/time.Second),
	)
	return decision, nil
}

// Remaining returns how long the current window for prefix and identifier
// still runs, or zero when no window is open.
func (l *RateLimiter) Remaining(ctx context.Context, prefix, identifier string) (time.Duration, error) {
	ttl, err := l.store.TTL(ctx, RateLimitKey(prefix, identifier))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return ttl, nil
}

// Reset drops the counter for prefix and identifier.
func (l *RateLimiter) Reset(ctx context.Context, prefix, identifier string) (bool, error) {
	deleted, err := l.store.Delete(ctx, RateLimitKey(prefix, identifier))
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return deleted, nil
}
