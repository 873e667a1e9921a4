package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
)

type Config struct {
	TokenTTL        time.Duration
	SignalsCacheKey string
	SignalsCacheTTL time.Duration
	PriceLabel      string
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsPaid    bool      `json:"is_paid"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        UserView `json:"user"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

type SubscriptionStatus struct {
	IsPaid               bool    `json:"is_paid"`
	StripeCustomerID     *string `json:"stripe_customer_id"`
	StripeSubscriptionID *string `json:"stripe_subscription_id"`
	Email                string  `json:"email"`
}

const (
	WebhookStatusSuccess = "success"
	WebhookStatusIgnored = "ignored"
	WebhookStatusError   = "error"
)

type WebhookResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type SignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Total   int             `json:"total"`
	IsPaid  bool            `json:"is_paid"`
	Cached  bool            `json:"cached"`
	Message *string         `json:"message"`
}

func toUserView(u domain.User) UserView {
	return UserView{ID: u.UserID, Email: u.Email, IsPaid: u.IsPaid, CreatedAt: u.CreatedAt}
}
