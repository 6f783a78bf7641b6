package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/repo"
	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/pagination"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.base.DB(ctx).Omit("Lines").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&lines).Error
}

func (r *repository) UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_price", total).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Lines", orderLinesByPosition).
		Where("id = ?", orderID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	tx := r.base.DB(ctx).
		Preload("Lines", orderLinesByPosition).
		Where("account_id = ?", accountID)
	if cursor != nil {
		at, err := cursor.Time()
		if err != nil {
			return nil, err
		}
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, cursor.ID)
	}

	var orders []models.Order
	if err := tx.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func orderLinesByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
