package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/greengrocer/storefront/api/middleware"
	"github.com/greengrocer/storefront/api/responses"
	"github.com/greengrocer/storefront/api/validators"
	"github.com/greengrocer/storefront/internal/cart"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
)

type addCartItemPayload struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// principalFromContext prefers the authenticated account and falls back to the guest session.
func principalFromContext(ctx context.Context) (cart.Principal, error) {
	principal := cart.Principal{SessionID: middleware.SessionIDFromContext(ctx)}
	if accountID, ok := middleware.AccountIDFromContext(ctx); ok {
		principal.AccountID = &accountID
	}
	if !principal.Authenticated() && principal.SessionID == "" {
		return cart.Principal{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session missing")
	}
	return principal, nil
}

// CartView returns the current cart of the caller.
func CartView(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		principal, err := principalFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.ViewCart(ctx, principal)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds one unit of a product to the caller's cart.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		principal, err := principalFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload addCartItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		productID, err := uuid.Parse(strings.TrimSpace(payload.ProductID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		view, err := svc.AddToCart(ctx, principal, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartRemoveItem drops a line from the caller's cart.
func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return cartLineHandler(svc, logg, func(s cart.Service) lineOp { return s.RemoveFromCart })
}

// CartDecreaseItem removes one unit of a line, dropping it at zero.
func CartDecreaseItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return cartLineHandler(svc, logg, func(s cart.Service) lineOp { return s.DecreaseQuantity })
}

type lineOp func(ctx context.Context, principal cart.Principal, productID uuid.UUID) (*cart.View, error)

func cartLineHandler(svc cart.Service, logg *logger.Logger, pick func(cart.Service) lineOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		principal, err := principalFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := pick(svc)(ctx, principal, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
