package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger is the only writer of product stock and availability.
type Ledger interface {
	// Reserve adjusts stock by Delta inside tx. Negative deltas consume stock.
	Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int) (*models.Product, error)
	SetDisabled(ctx context.Context, productID uuid.UUID, disabled bool) (*models.Product, error)
	Movements(ctx context.Context, productID uuid.UUID) ([]models.InventoryMovement, error)
}

// ReserveInput describes one stock adjustment.
type ReserveInput struct {
	ProductID uuid.UUID
	Delta     int
	Reason    enums.InventoryReason
	OrderID   *uuid.UUID
}

type ledger struct {
	repo Repository
	tx   txRunner
}

// NewLedger wires the ledger with its repository and transaction runner.
func NewLedger(repo Repository, tx txRunner) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &ledger{repo: repo, tx: tx}, nil
}

func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.Product, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid inventory reason %q", input.Reason))
	}

	repo := l.repo.WithTx(tx)
	updated, err := repo.AdjustStock(ctx, input.ProductID, input.Delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}

	product, err := repo.FindProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !updated {
		return nil, pkgerrors.InsufficientStock(pkgerrors.StockShortage{
			ProductID:   product.ID.String(),
			ProductName: product.Name,
			Requested:   -input.Delta,
			Available:   product.Stock,
		})
	}

	movement := &models.InventoryMovement{
		ProductID:  product.ID,
		OrderID:    input.OrderID,
		Delta:      input.Delta,
		StockAfter: product.Stock,
		Reason:     input.Reason,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory movement")
	}
	return product, nil
}

func (l *ledger) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := l.repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (l *ledger) Restock(ctx context.Context, productID uuid.UUID, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	var product *models.Product
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = l.Reserve(ctx, tx, ReserveInput{
			ProductID: productID,
			Delta:     qty,
			Reason:    enums.InventoryReasonRestock,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (l *ledger) SetDisabled(ctx context.Context, productID uuid.UUID, disabled bool) (*models.Product, error) {
	updated, err := l.repo.SetDisabled(ctx, productID, disabled)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set product disabled")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return l.Get(ctx, productID)
}

func (l *ledger) Movements(ctx context.Context, productID uuid.UUID) ([]models.InventoryMovement, error) {
	movements, err := l.repo.ListMovements(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory movements")
	}
	return movements, nil
}
