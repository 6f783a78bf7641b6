package product

import (
	"strings"

	"github.com/greengrocer/storefront/pkg/enums"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// categoryAll disables the category filter.
const categoryAll = "all"

// DefaultFeaturedLimit is used when Featured is called without a positive limit.
const DefaultFeaturedLimit = 8

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Category string `json:"category,omitempty"`
	Query    string `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate and filter the catalog.
type ListProductsInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

func (in ListProductsInput) normalize() (listQuery, error) {
	q := listQuery{
		search: strings.TrimSpace(in.Filters.Query),
		limit:  pagination.LimitWithBuffer(in.Pagination.Limit),
	}

	raw := strings.TrimSpace(in.Filters.Category)
	if raw != "" && !strings.EqualFold(raw, categoryAll) {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return listQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		q.category = &category
	}

	cursor, err := pagination.ParseCursor(in.Pagination.Cursor)
	if err != nil {
		return listQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q.cursor = cursor
	return q, nil
}
