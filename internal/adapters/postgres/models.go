package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
)

type userModel struct {
	UserID               uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Email                string    `gorm:"column:email"`
	PasswordHash         string    `gorm:"column:password_hash"`
	IsPaid               bool      `gorm:"column:is_paid"`
	StripeCustomerID     *string   `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string   `gorm:"column:stripe_subscription_id"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "signals_outbox" }

func toDomainUser(m userModel) domain.User {
	return domain.User{
		UserID:               m.UserID,
		Email:                m.Email,
		PasswordHash:         m.PasswordHash,
		IsPaid:               m.IsPaid,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}
