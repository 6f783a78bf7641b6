package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a registered shopper.
type Account struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email        string     `gorm:"column:email;not null;uniqueIndex:accounts_email_key"`
	Username     string     `gorm:"column:username;not null;uniqueIndex:accounts_username_key"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	DateJoined   time.Time  `gorm:"column:date_joined;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
