package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/repo"
	"github.com/greengrocer/storefront/pkg/db/models"
)

// Repository exposes account persistence operations.
type Repository struct {
	base repo.Base
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// Create inserts a new account and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateAccountDTO) (*models.Account, error) {
	account := dto.ToModel()
	if err := r.base.DB(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// FindByEmail retrieves the account matching the lower-cased email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.base.DB(ctx).Where("email = ?", email).Take(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByUsername retrieves the account with the exact username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.base.DB(ctx).Where("username = ?", username).Take(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID loads an account by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.base.DB(ctx).Take(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateLastLogin refreshes the account's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}
