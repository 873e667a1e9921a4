package ports

import (
	"context"

	"github.com/google/uuid"
)

// CheckoutSession is what the caller needs to redirect a user to payment.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// CheckoutCompletion is the normalized body of a completed checkout event.
type CheckoutCompletion struct {
	SessionID       string
	PaymentStatus   string
	UserID          string
	CustomerID      string
	PaymentIntentID string
}

// WebhookEvent is a verified provider event.
type WebhookEvent struct {
	ID       string
	Type     string
	Checkout *CheckoutCompletion
}

// PaymentProvider wraps the payment provider's API.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string) (CheckoutSession, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
