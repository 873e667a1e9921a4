package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

const checkoutCompleted = "checkout.session.completed"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	FrontendURL   string
	// BaseURL overrides the API endpoint; used against stripe-mock in tests.
	BaseURL string

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// StripeProvider implements ports.PaymentProvider. Outbound API calls go
// through a circuit breaker; webhook verification is local and never trips it.
type StripeProvider struct {
	cfg     StripeConfig
	api     *client.API
	breaker *gobreaker.CircuitBreaker
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backendCfg := &stripe.BackendConfig{
			URL:               stripe.String(cfg.BaseURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "stripe-api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Default().Warn("circuit breaker state change",
				"module", "payments",
				"layer", "adapter",
				"operation", "stripe_api",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// Request errors are the caller's fault, not an outage.
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) {
				return stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429
			}
			return err == nil
		},
	})

	return &StripeProvider{cfg: cfg, api: api, breaker: breaker}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string) (ports.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.cfg.PriceID), Quantity: stripe.Int64(1)},
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(email),
		ClientReferenceID:  stripe.String(userID.String()),
		SuccessURL:         stripe.String(p.cfg.FrontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(p.cfg.FrontendURL + "/cancel"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.api.CheckoutSessions.New(params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ports.CheckoutSession{}, fmt.Errorf("%w: stripe temporarily unavailable", domain.ErrPaymentProvider)
		}
		return ports.CheckoutSession{}, fmt.Errorf("%w: create checkout session: %v", domain.ErrPaymentProvider, err)
	}
	session := res.(*stripe.CheckoutSession)
	return ports.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (ports.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return ports.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := ports.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type != checkoutCompleted || event.Data == nil {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return ports.WebhookEvent{}, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidInput, err)
	}
	completion := &ports.CheckoutCompletion{
		SessionID:     session.ID,
		PaymentStatus: string(session.PaymentStatus),
		UserID:        session.Metadata["user_id"],
	}
	if session.Customer != nil {
		completion.CustomerID = session.Customer.ID
	}
	if session.PaymentIntent != nil {
		completion.PaymentIntentID = session.PaymentIntent.ID
	}
	out.Checkout = completion
	return out, nil
}
