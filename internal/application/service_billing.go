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

const (
	EventCheckoutCompleted = "checkout.session.completed"
	paymentStatusPaid      = "paid"
)

func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID) (CheckoutResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return CheckoutResponse{}, err
	}
	if user.Entitled() {
		return CheckoutResponse{}, domain.ErrAlreadyEntitled
	}

	session, err := s.payments.CreateCheckoutSession(ctx, user.UserID, user.Email)
	if err != nil {
		return CheckoutResponse{}, err
	}
	return CheckoutResponse{CheckoutURL: session.URL, SessionID: session.SessionID}, nil
}

func (s *Service) BillingStatus(ctx context.Context, userID uuid.UUID) (SubscriptionStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return SubscriptionStatus{}, err
	}
	return SubscriptionStatus{
		IsPaid:               user.IsPaid,
		StripeCustomerID:     user.StripeCustomerID,
		StripeSubscriptionID: user.StripeSubscriptionID,
		Email:                user.Email,
	}, nil
}

// HandleWebhook verifies and applies a payment provider event. The
// entitlement mutation runs at most once per event id: a processed marker is
// written only after it succeeds, and concurrent deliveries are serialized by
// a claim on the event id.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if strings.TrimSpace(signature) == "" {
		return WebhookResult{}, fmt.Errorf("%w: Missing Stripe signature", domain.ErrInvalidInput)
	}
	event, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return WebhookResult{}, err
	}

	processed, err := s.guard.IsProcessed(ctx, event.ID)
	if err != nil {
		return WebhookResult{}, err
	}
	if processed {
		s.metrics.WebhookEvent(event.Type, "duplicate")
		return WebhookResult{Status: WebhookStatusSuccess, Message: "Event already processed"}, nil
	}

	if event.Type != EventCheckoutCompleted || event.Checkout == nil {
		s.metrics.WebhookEvent(event.Type, WebhookStatusIgnored)
		return WebhookResult{Status: WebhookStatusIgnored, Message: fmt.Sprintf("Event type %s not handled", event.Type)}, nil
	}
	if event.Checkout.PaymentStatus != paymentStatusPaid {
		s.metrics.WebhookEvent(event.Type, WebhookStatusIgnored)
		return WebhookResult{Status: WebhookStatusIgnored, Message: "Payment status: " + event.Checkout.PaymentStatus}, nil
	}

	claimed, err := s.guard.Claim(ctx, event.ID)
	if err != nil {
		return WebhookResult{}, err
	}
	if !claimed {
		return WebhookResult{}, fmt.Errorf("%w: %s", domain.ErrEventInFlight, event.ID)
	}
	defer func() {
		if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
			logWarn(ctx, "failed to release webhook claim", "handle_webhook",
				"event_id", event.ID,
				"error", releaseErr,
			)
		}
	}()

	// The previous claimant may have finished between the check and the claim.
	if processed, err = s.guard.IsProcessed(ctx, event.ID); err != nil {
		return WebhookResult{}, err
	} else if processed {
		s.metrics.WebhookEvent(event.Type, "duplicate")
		return WebhookResult{Status: WebhookStatusSuccess, Message: "Event already processed"}, nil
	}

	if err := s.completeCheckout(ctx, event.ID, *event.Checkout); err != nil {
		logError(ctx, "checkout completion failed", "handle_webhook",
			"event_id", event.ID,
			"session_id", event.Checkout.SessionID,
			"error", err,
		)
		s.metrics.WebhookEvent(event.Type, WebhookStatusError)
		return WebhookResult{Status: WebhookStatusError, Message: "Failed to update user"}, nil
	}

	if err := s.guard.MarkProcessed(ctx, event.ID); err != nil {
		// Redelivery may reapply the grant, which is idempotent on the row.
		logWarn(ctx, "failed to mark webhook processed", "handle_webhook",
			"event_id", event.ID,
			"error", err,
		)
	}
	s.metrics.WebhookEvent(event.Type, WebhookStatusSuccess)
	logInfo(ctx, "entitlement granted", "handle_webhook",
		"event_id", event.ID,
		"user_id", event.Checkout.UserID,
	)
	return WebhookResult{Status: WebhookStatusSuccess, Message: "User subscription updated"}, nil
}

func (s *Service) completeCheckout(ctx context.Context, eventID string, checkout ports.CheckoutCompletion) error {
	userID, err := uuid.Parse(strings.TrimSpace(checkout.UserID))
	if err != nil {
		return fmt.Errorf("%w: session %s has no valid user_id metadata", domain.ErrInvalidInput, checkout.SessionID)
	}

	subscriptionID := checkout.PaymentIntentID
	if subscriptionID == "" {
		subscriptionID = checkout.SessionID
	}

	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"user_id":                userID,
		"stripe_event_id":        eventID,
		"stripe_customer_id":     checkout.CustomerID,
		"stripe_subscription_id": subscriptionID,
		"granted_at":             now,
	})
	_, err = s.users.GrantEntitlement(ctx, ports.GrantEntitlementParams{
		UserID:               userID,
		StripeCustomerID:     checkout.CustomerID,
		StripeSubscriptionID: subscriptionID,
		GrantedAt:            now,
	}, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "billing.entitlement_granted",
		PartitionKey: userID.String(),
		Payload:      payload,
		OccurredAt:   now,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	return err
}
