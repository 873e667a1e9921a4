package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, params ports.CreateUserParams, event ports.OutboxEvent) (domain.User, error) {
	rec := userModel{
		UserID:       params.UserID,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return tx.Create(toOutboxModel(event)).Error
	})
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return toDomainUser(rec), nil
}

// GrantEntitlement flips the paid flag and enqueues the grant event in one
// transaction. Re-granting an already paid account only refreshes the ids.
func (r *userRepository) GrantEntitlement(ctx context.Context, params ports.GrantEntitlementParams, event ports.OutboxEvent) (domain.User, error) {
	var rec userModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", params.UserID).
			Take(&rec).Error; err != nil {
			return mapNotFound(err)
		}

		updates := map[string]any{
			"is_paid":                true,
			"stripe_subscription_id": params.StripeSubscriptionID,
			"updated_at":             params.GrantedAt,
		}
		if params.StripeCustomerID != "" {
			updates["stripe_customer_id"] = params.StripeCustomerID
		}
		if err := tx.Model(&userModel{}).Where("user_id = ?", params.UserID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", params.UserID).Take(&rec).Error; err != nil {
			return err
		}
		return tx.Create(toOutboxModel(event)).Error
	})
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
