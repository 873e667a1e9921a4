package postgres

import (
	"github.com/viralforge/trading-signals/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users  ports.UserRepository
	Outbox ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:  &userRepository{db: db},
		Outbox: &outboxRepository{db: db},
	}
}
