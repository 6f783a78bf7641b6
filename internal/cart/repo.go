package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greengrocer/storefront/internal/repo"
	"github.com/greengrocer/storefront/pkg/db/models"
)

// Repository persists durable account carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// EnsureCart creates the account's cart if needed and returns it locked.
	EnsureCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	// LockCart returns the account's cart locked, or nil when none exists.
	LockCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	FindCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error)
	IncrementLine(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	DecrementLine(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteLine(ctx context.Context, cartID, productID uuid.UUID) error
	ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error)
	ClearLines(ctx context.Context, cartID uuid.UUID) error
	// DeleteEmptyBefore drops carts without lines last touched before cutoff.
	DeleteEmptyBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) EnsureCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	record := &models.Cart{AccountID: accountID}
	err := r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.Assignments(map[string]any{"updated_at": time.Now().UTC()}),
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}
	cart, err := r.LockCart(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return cart, nil
}

func (r *repository) LockCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.base.ForUpdate(ctx).Where("account_id = ?", accountID).Take(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindCart(ctx context.Context, accountID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.base.DB(ctx).Where("account_id = ?", accountID).Take(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// IncrementLine upserts the line so a repeated product adds to the existing quantity.
func (r *repository) IncrementLine(ctx context.Context, cartID, productID uuid.UUID, qty int) error {
	line := &models.CartLine{CartID: cartID, ProductID: productID, Quantity: qty}
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_lines.quantity + excluded.quantity"),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(line).Error
}

// DecrementLine lowers the quantity by one and deletes the line instead of storing zero.
func (r *repository) DecrementLine(ctx context.Context, cartID, productID uuid.UUID) error {
	res := r.base.DB(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ? AND product_id = ? AND quantity > 1", cartID, productID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.DeleteLine(ctx, cartID, productID)
}

func (r *repository) DeleteLine(ctx context.Context, cartID, productID uuid.UUID) error {
	return r.base.DB(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartLine{}).Error
}

// ListLines returns lines in insertion order.
func (r *repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := r.base.DB(ctx).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) ClearLines(ctx context.Context, cartID uuid.UUID) error {
	return r.base.DB(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{}).Error
}

func (r *repository) DeleteEmptyBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Where("updated_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM cart_lines WHERE cart_lines.cart_id = carts.id)").
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
