package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/repo"
	"github.com/greengrocer/storefront/pkg/db/models"
)

// Repository owns the stock columns of products and the movement log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// AdjustStock applies delta only when the result stays non-negative.
	// It reports whether a row was updated.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error)
	SetDisabled(ctx context.Context, productID uuid.UUID, disabled bool) (bool, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID) ([]models.InventoryMovement, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

// SET expressions read the pre-update row, so available is derived from the same delta.
func (r *repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		Updates(map[string]any{
			"stock":     gorm.Expr("stock + ?", delta),
			"available": gorm.Expr("(stock + ? > 0) AND NOT disabled", delta),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetDisabled(ctx context.Context, productID uuid.UUID, disabled bool) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"disabled":  disabled,
			"available": gorm.Expr("stock > 0 AND ?", !disabled),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.InventoryMovement) error {
	return r.base.DB(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, productID uuid.UUID) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	if err := r.base.DB(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
