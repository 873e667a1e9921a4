package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

func (s *Service) Signup(ctx context.Context, req SignupRequest) (AuthResponse, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return AuthResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return AuthResponse{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	userID := uuid.New()
	payload, _ := json.Marshal(map[string]any{
		"user_id":       userID,
		"email":         email,
		"registered_at": now,
	})
	event := ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "user.registered",
		PartitionKey: userID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}

	user, err := s.users.Create(ctx, ports.CreateUserParams{
		UserID:       userID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, event)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return AuthResponse{}, fmt.Errorf("%w: Email already registered", domain.ErrConflict)
		}
		return AuthResponse{}, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResponse{}, domain.ErrInvalidCredentials
		}
		return AuthResponse{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me returns the stored account, not the token's snapshot of it.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (UserView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return toUserView(user), nil
}

// Authenticate validates a bearer token and returns its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (ports.AuthClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *Service) issue(user domain.User) (AuthResponse, error) {
	now := s.nowFn()
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:    user.UserID,
		Email:     user.Email,
		IsPaid:    user.IsPaid,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserView(user),
	}, nil
}
