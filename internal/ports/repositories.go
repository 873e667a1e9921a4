package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
)

// CreateUserParams captures signup inputs. The outbox event is written in
// the same transaction as the user row.
type CreateUserParams struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// GrantEntitlementParams is the billing-completion write.
type GrantEntitlementParams struct {
	UserID               uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	GrantedAt            time.Time
}

// UserRepository owns the account record.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams, event OutboxEvent) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GrantEntitlement(ctx context.Context, params GrantEntitlementParams, event OutboxEvent) (domain.User, error)
	Ping(ctx context.Context) error
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
