package controllers

import (
	"net/http"

	"github.com/greengrocer/storefront/api/responses"
	"github.com/greengrocer/storefront/api/validators"
	product "github.com/greengrocer/storefront/internal/products"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/pagination"
)

const (
	maxSearchLen   = 100
	maxCategoryLen = 50
	maxCursorLen   = 512
)

// ProductList returns a page of the catalog filtered by category and search text.
func ProductList(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(ctx, product.ListProductsInput{
			Filters: product.ListFilters{
				Category: validators.SanitizeString(query.Get("category"), maxCategoryLen),
				Query:    validators.SanitizeString(query.Get("q"), maxSearchLen),
			},
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: validators.SanitizeString(query.Get("cursor"), maxCursorLen),
			},
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ProductFeatured returns the storefront landing selection.
func ProductFeatured(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", product.DefaultFeaturedLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, err := svc.Featured(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

// ProductDetail returns a single product.
func ProductDetail(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.Get(ctx, productID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
