package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// Service exposes read-only catalog operations to shoppers.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	Featured(ctx context.Context, limit int) ([]ProductDTO, error)
}

type service struct {
	repo *Repository
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	query, err := input.normalize()
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ProductListResult{Products: make([]ProductDTO, 0, pageSize)}
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{Key: last.Name, ID: last.ID})
		rows = rows[:pageSize]
	}
	for i := range rows {
		result.Products = append(result.Products, NewProductDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) Featured(ctx context.Context, limit int) ([]ProductDTO, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	limit = pagination.NormalizeLimit(limit)

	rows, err := s.repo.Featured(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewProductDTO(&rows[i]))
	}
	return out, nil
}
