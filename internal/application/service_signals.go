package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
)

// GetSignals serves the cached feed trimmed to the caller's entitlement.
// Entitlement is read from the account record so a grant is visible before
// the caller's token is refreshed.
func (s *Service) GetSignals(ctx context.Context, userID uuid.UUID) (SignalsResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return SignalsResponse{}, err
	}

	all, cached, err := s.signals.GetOrCompute(ctx, s.cfg.SignalsCacheKey, s.cfg.SignalsCacheTTL, s.source.Generate)
	if err != nil {
		return SignalsResponse{}, err
	}

	visible, note := domain.Project(s.policy, all, user.Entitled())
	return SignalsResponse{
		Signals: visible,
		Total:   len(visible),
		IsPaid:  user.IsPaid,
		Cached:  cached,
		Message: note,
	}, nil
}

// InvalidateSignals drops the cached feed.
func (s *Service) InvalidateSignals(ctx context.Context) (bool, error) {
	return s.signals.Invalidate(ctx, s.cfg.SignalsCacheKey)
}
