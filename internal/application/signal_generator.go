package application

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/viralforge/trading-signals/internal/domain"
)

const signalTimestampLayout = "2006-01-02 15:04:05"

type GeneratorConfig struct {
	Instruments []domain.Instrument
	// Latency simulates the cost of producing a fresh feed.
	Latency time.Duration
	// BuyWeight is the probability of a BUY recommendation.
	BuyWeight float64
}

// MockSignalGenerator produces a randomized feed around each instrument's
// base price. It is the expensive computation behind the signals cache.
type MockSignalGenerator struct {
	cfg   GeneratorConfig
	mu    sync.Mutex
	rng   *rand.Rand
	nowFn func() time.Time
}

func NewMockSignalGenerator(cfg GeneratorConfig, rng *rand.Rand, nowFn func() time.Time) *MockSignalGenerator {
	if len(cfg.Instruments) == 0 {
		cfg.Instruments = domain.DefaultInstruments()
	}
	if cfg.BuyWeight <= 0 || cfg.BuyWeight > 1 {
		cfg.BuyWeight = 0.6
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MockSignalGenerator{cfg: cfg, rng: rng, nowFn: nowFn}
}

func (g *MockSignalGenerator) Generate(ctx context.Context) ([]domain.Signal, error) {
	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.nowFn().Format(signalTimestampLayout)
	signals := make([]domain.Signal, 0, len(g.cfg.Instruments))
	for _, inst := range g.cfg.Instruments {
		variation := g.rng.Float64()*0.04 - 0.02
		price := round2(inst.BasePrice * (1 + variation))

		sig := domain.Signal{
			Symbol:    inst.Symbol,
			Price:     price,
			Timestamp: timestamp,
		}
		if g.rng.Float64() < g.cfg.BuyWeight {
			sig.Action = domain.ActionBuy
			sig.Target = round2(price * 1.03)
			sig.Stoploss = round2(price * 0.98)
		} else {
			sig.Action = domain.ActionSell
			sig.Target = round2(price * 0.97)
			sig.Stoploss = round2(price * 1.02)
		}
		signals = append(signals, sig)
	}

	logInfo(ctx, "generated trading signals", "generate_signals", "count", len(signals))
	return signals, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
