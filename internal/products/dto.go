package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greengrocer/storefront/pkg/db/models"
)

// ProductDTO is the catalog payload returned to shoppers.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Available   bool            `json:"available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductListResult is one page of the catalog.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Category:    string(p.Category),
		Stock:       p.Stock,
		Available:   p.Available && !p.Disabled,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
