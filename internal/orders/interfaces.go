package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// ListByAccount returns up to limit orders newest first, starting after cursor.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
}
