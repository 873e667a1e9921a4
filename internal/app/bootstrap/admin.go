package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	cacheadapter "github.com/viralforge/trading-signals/internal/adapters/cache"
	"github.com/viralforge/trading-signals/internal/application"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

// Admin exposes the store-backed components to operator tooling. It needs
// only the key-value store.
type Admin struct {
	Config  Config
	Store   *cacheadapter.RedisStore
	Limiter *application.RateLimiter
	Guard   *application.IdempotencyGuard
	Signals *application.ReadThroughCache[[]domain.Signal]

	client *redis.Client
}

func NewAdmin(ctx context.Context, configPath string) (*Admin, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	client, err := cacheadapter.Connect(ctx, cfg.RedisURL, redisPingTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newAdmin(cfg, client), nil
}

func newAdmin(cfg Config, client *redis.Client) *Admin {
	store := cacheadapter.NewRedisStore(client)
	metrics := ports.NopMetrics{}
	return &Admin{
		Config:  cfg,
		Store:   store,
		Limiter: newLimiter(cfg, store, metrics),
		Guard:   newGuard(cfg, store),
		Signals: newSignalCache(cfg, store, metrics),
		client:  client,
	}
}

// Rule returns the configured rule for an action prefix.
func (a *Admin) Rule(prefix string) (application.RateLimitRule, bool) {
	for _, rule := range a.Config.RateLimits.rules() {
		if rule.Prefix == prefix {
			return rule, true
		}
	}
	return application.RateLimitRule{}, false
}

func (a *Admin) Close() error {
	return a.client.Close()
}
