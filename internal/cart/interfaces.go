package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/db/models"
)

// Cart is the contract shared by the session and account backends.
// Removing or decrementing a line that does not exist is a no-op.
type Cart interface {
	AddLine(ctx context.Context, productID uuid.UUID, qty int) error
	RemoveLine(ctx context.Context, productID uuid.UUID) error
	DecrementLine(ctx context.Context, productID uuid.UUID) error
	Lines(ctx context.Context) ([]Line, error)
	Total(ctx context.Context) (decimal.Decimal, error)
	Clear(ctx context.Context) error
}

// Line is a cart line joined with the current product row.
type Line struct {
	Product  models.Product
	Quantity int
}

// Subtotal uses the product's current price; order lines freeze it instead.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// sessionStore is the redis surface the session backend needs.
type sessionStore interface {
	SessionCartKey(sessionID string) string
	HashIncr(ctx context.Context, key, field string, delta int64, ttl time.Duration) (int64, error)
	HashDecr(ctx context.Context, key, field string, ttl time.Duration) (int64, error)
	HashDel(ctx context.Context, key string, fields ...string) error
	HashInts(ctx context.Context, key string) (map[string]int64, error)
	MergeClaimKey(sessionID, claimID string) string
	HashClaim(ctx context.Context, key, claimKey string, ttl time.Duration) (map[string]int64, error)
	HashRestore(ctx context.Context, claimKey, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
