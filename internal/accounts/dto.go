package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greengrocer/storefront/pkg/db/models"
)

// AccountDTO is the transport shape that omits credentials.
type AccountDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	DateJoined  time.Time  `json:"date_joined"`
}

// CreateAccountDTO holds the data required by the repo to persist a new account.
type CreateAccountDTO struct {
	Email        string
	Username     string
	PasswordHash string
}

func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		LastLoginAt: a.LastLoginAt,
		DateJoined:  a.DateJoined,
	}
}

func (c CreateAccountDTO) ToModel() *models.Account {
	return &models.Account{
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Username:     strings.TrimSpace(c.Username),
		PasswordHash: c.PasswordHash,
	}
}
