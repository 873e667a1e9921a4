package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record. IsPaid is the entitlement flag; it is only
// flipped by billing completion.
type User struct {
	UserID               uuid.UUID
	Email                string
	PasswordHash         string
	IsPaid               bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Entitled reports whether the account may see the full signals feed.
func (u User) Entitled() bool {
	return u.IsPaid
}
