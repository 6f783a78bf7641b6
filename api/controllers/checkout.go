package controllers

import (
	"net/http"

	"github.com/greengrocer/storefront/api/middleware"
	"github.com/greengrocer/storefront/api/responses"
	"github.com/greengrocer/storefront/internal/checkout"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
)

// Checkout places an order from the authenticated account's cart.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		accountID, ok := middleware.AccountIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to check out"))
			return
		}

		order, err := svc.Checkout(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
