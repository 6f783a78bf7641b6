package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

// AccountCart is the durable cart owned by an account. Every mutation locks
// the cart row so it serializes against checkout for the same account.
type AccountCart struct {
	repo      Repository
	tx        txRunner
	products  productLoader
	accountID uuid.UUID
}

// NewAccountCart binds the durable backend to one account.
func NewAccountCart(repo Repository, tx txRunner, products productLoader, accountID uuid.UUID) *AccountCart {
	return &AccountCart{repo: repo, tx: tx, products: products, accountID: accountID}
}

func (c *AccountCart) AddLine(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return c.mutate(ctx, true, func(repo Repository, cartID uuid.UUID) error {
		return repo.IncrementLine(ctx, cartID, productID, qty)
	})
}

func (c *AccountCart) RemoveLine(ctx context.Context, productID uuid.UUID) error {
	return c.mutate(ctx, false, func(repo Repository, cartID uuid.UUID) error {
		return repo.DeleteLine(ctx, cartID, productID)
	})
}

func (c *AccountCart) DecrementLine(ctx context.Context, productID uuid.UUID) error {
	return c.mutate(ctx, false, func(repo Repository, cartID uuid.UUID) error {
		return repo.DecrementLine(ctx, cartID, productID)
	})
}

func (c *AccountCart) Clear(ctx context.Context) error {
	return c.mutate(ctx, false, func(repo Repository, cartID uuid.UUID) error {
		return repo.ClearLines(ctx, cartID)
	})
}

// mutate runs fn against the locked cart. Without create, a missing cart makes fn a no-op.
func (c *AccountCart) mutate(ctx context.Context, create bool, fn func(repo Repository, cartID uuid.UUID) error) error {
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		lockCart := repo.LockCart
		if create {
			lockCart = repo.EnsureCart
		}
		cart, err := lockCart(ctx, c.accountID)
		if err != nil {
			return err
		}
		if cart == nil {
			return nil
		}
		return fn(repo, cart.ID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account cart")
	}
	return nil
}

// Lines returns lines in insertion order joined with current product rows.
func (c *AccountCart) Lines(ctx context.Context) ([]Line, error) {
	cart, err := c.repo.FindCart(ctx, c.accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account cart")
	}
	if cart == nil {
		return []Line{}, nil
	}
	rows, err := c.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	if len(rows) == 0 {
		return []Line{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	products, err := c.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		product, ok := products[row.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, Line{Product: product, Quantity: row.Quantity})
	}
	return lines, nil
}

func (c *AccountCart) Total(ctx context.Context) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumLines(lines), nil
}
