package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/orders"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// recentOrderLimit caps the orders shown on the profile page.
const recentOrderLimit = 5

type orderHistory interface {
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*orders.OrderList, error)
}

// Profile is the account summary plus its most recent orders.
type Profile struct {
	Account      *AccountDTO           `json:"account"`
	RecentOrders []orders.OrderSummary `json:"recent_orders"`
}

// ProfileService assembles the profile page.
type ProfileService interface {
	Profile(ctx context.Context, accountID uuid.UUID) (*Profile, error)
}

type profileService struct {
	accounts *Repository
	orders   orderHistory
}

// NewProfileService builds the profile read service.
func NewProfileService(accounts *Repository, history orderHistory) (ProfileService, error) {
	if accounts == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if history == nil {
		return nil, fmt.Errorf("order history required")
	}
	return &profileService{accounts: accounts, orders: history}, nil
}

func (s *profileService) Profile(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	recent, err := s.orders.History(ctx, accountID, pagination.Params{Limit: recentOrderLimit})
	if err != nil {
		return nil, err
	}
	return &Profile{Account: FromModel(account), RecentOrders: recent.Orders}, nil
}
