package cart

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

// SessionCart keeps a guest cart as a redis hash of product id to quantity.
type SessionCart struct {
	store    sessionStore
	products productLoader
	key      string
	ttl      time.Duration
}

// NewSessionCart binds a session cart to one session id.
func NewSessionCart(store sessionStore, products productLoader, sessionID string, ttl time.Duration) *SessionCart {
	return &SessionCart{
		store:    store,
		products: products,
		key:      store.SessionCartKey(sessionID),
		ttl:      ttl,
	}
}

func (c *SessionCart) AddLine(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if _, err := c.store.HashIncr(ctx, c.key, productID.String(), int64(qty), c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart add")
	}
	return nil
}

func (c *SessionCart) RemoveLine(ctx context.Context, productID uuid.UUID) error {
	if err := c.store.HashDel(ctx, c.key, productID.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart remove")
	}
	return nil
}

func (c *SessionCart) DecrementLine(ctx context.Context, productID uuid.UUID) error {
	if _, err := c.store.HashDecr(ctx, c.key, productID.String(), c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart decrement")
	}
	return nil
}

// Quantities returns the product quantities, skipping malformed fields.
func (c *SessionCart) Quantities(ctx context.Context) (map[uuid.UUID]int, error) {
	raw, err := c.store.HashInts(ctx, c.key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart read")
	}
	return productQuantities(raw), nil
}

// claim moves the cart aside under claimKey so later guest writes start a new
// hash. The returned quantities belong to the caller until release or restore.
func (c *SessionCart) claim(ctx context.Context, claimKey string, ttl time.Duration) (map[uuid.UUID]int, error) {
	raw, err := c.store.HashClaim(ctx, c.key, claimKey, ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart claim")
	}
	return productQuantities(raw), nil
}

// restore puts claimed quantities back, summing with anything added since.
func (c *SessionCart) restore(ctx context.Context, claimKey string) error {
	if err := c.store.HashRestore(ctx, claimKey, c.key, c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart restore")
	}
	return nil
}

func productQuantities(raw map[string]int64) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(raw))
	for field, qty := range raw {
		id, err := uuid.Parse(field)
		if err != nil || qty < 1 {
			continue
		}
		out[id] = int(qty)
	}
	return out
}

// Lines skips products that no longer exist and orders the rest by name.
func (c *SessionCart) Lines(ctx context.Context) ([]Line, error) {
	quantities, err := c.Quantities(ctx)
	if err != nil {
		return nil, err
	}
	if len(quantities) == 0 {
		return []Line{}, nil
	}

	ids := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	products, err := c.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	lines := make([]Line, 0, len(products))
	for id, qty := range quantities {
		product, ok := products[id]
		if !ok {
			continue
		}
		lines = append(lines, Line{Product: product, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Product.Name != lines[j].Product.Name {
			return lines[i].Product.Name < lines[j].Product.Name
		}
		return lines[i].Product.ID.String() < lines[j].Product.ID.String()
	})
	return lines, nil
}

func (c *SessionCart) Total(ctx context.Context) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumLines(lines), nil
}

func (c *SessionCart) Clear(ctx context.Context) error {
	if err := c.store.Del(ctx, c.key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session cart clear")
	}
	return nil
}
