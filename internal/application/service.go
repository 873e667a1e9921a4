package application

import (
	"context"
	"time"

	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

const (
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultSignalsCacheKey = "signals:all"
	DefaultSignalsCacheTTL = 300 * time.Second
)

// SignalSource produces the full, ordered signals feed.
type SignalSource interface {
	Generate(ctx context.Context) ([]domain.Signal, error)
}

type Service struct {
	cfg         Config
	users       ports.UserRepository
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	payments    ports.PaymentProvider
	guard       *IdempotencyGuard
	signals     *ReadThroughCache[[]domain.Signal]
	source      SignalSource
	policy      domain.AccessPolicy
	metrics     ports.Metrics
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Users       ports.UserRepository
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
	Payments    ports.PaymentProvider
	Guard       *IdempotencyGuard
	SignalCache *ReadThroughCache[[]domain.Signal]
	Source      SignalSource
	Metrics     ports.Metrics
	Now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.SignalsCacheKey == "" {
		cfg.SignalsCacheKey = DefaultSignalsCacheKey
	}
	if cfg.SignalsCacheTTL <= 0 {
		cfg.SignalsCacheTTL = DefaultSignalsCacheTTL
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:         cfg,
		users:       deps.Users,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		payments:    deps.Payments,
		guard:       deps.Guard,
		signals:     deps.SignalCache,
		source:      deps.Source,
		policy:      domain.NewAccessPolicy(cfg.PriceLabel),
		metrics:     metrics,
		nowFn:       nowFn,
	}
}
