package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
)

// Principal identifies whose cart a request touches. Authenticated principals
// use the durable backend; guests use their session backend.
type Principal struct {
	AccountID *uuid.UUID
	SessionID string
}

// Authenticated reports whether the principal carries an account.
func (p Principal) Authenticated() bool {
	return p.AccountID != nil && *p.AccountID != uuid.Nil
}

// Service exposes the shopper-facing cart operations.
type Service interface {
	AddToCart(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error)
	RemoveFromCart(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error)
	DecreaseQuantity(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error)
	ViewCart(ctx context.Context, principal Principal) (*View, error)
	CartFor(principal Principal) (Cart, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	products   productLoader
	sessions   sessionStore
	sessionTTL time.Duration
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, products productLoader, sessions sessionStore, sessionTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		products:   products,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}, nil
}

func (s *service) CartFor(principal Principal) (Cart, error) {
	if principal.Authenticated() {
		return NewAccountCart(s.repo, s.tx, s.products, *principal.AccountID), nil
	}
	sessionID := strings.TrimSpace(principal.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return NewSessionCart(s.sessions, s.products, sessionID, s.sessionTTL), nil
}

// AddToCart rejects unknown and currently unavailable products. Stock is only
// consumed at checkout.
func (s *service) AddToCart(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error) {
	cart, err := s.CartFor(principal)
	if err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Available || product.Disabled || product.Stock < 1 {
		return nil, pkgerrors.InsufficientStock(pkgerrors.StockShortage{
			ProductID:   product.ID.String(),
			ProductName: product.Name,
			Requested:   1,
			Available:   product.Stock,
		})
	}

	if err := cart.AddLine(ctx, productID, 1); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) RemoveFromCart(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error) {
	cart, err := s.CartFor(principal)
	if err != nil {
		return nil, err
	}
	if err := cart.RemoveLine(ctx, productID); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) DecreaseQuantity(ctx context.Context, principal Principal, productID uuid.UUID) (*View, error) {
	cart, err := s.CartFor(principal)
	if err != nil {
		return nil, err
	}
	if err := cart.DecrementLine(ctx, productID); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) ViewCart(ctx context.Context, principal Principal) (*View, error) {
	cart, err := s.CartFor(principal)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) view(ctx context.Context, cart Cart) (*View, error) {
	lines, err := cart.Lines(ctx)
	if err != nil {
		return nil, err
	}
	return newView(lines), nil
}
