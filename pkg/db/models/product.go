package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/enums"
)

// Product is a catalog listing together with its stock ledger columns.
// Stock and Available are only written through the inventory ledger.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                `gorm:"column:name;not null"`
	Description *string               `gorm:"column:description"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	ImageURL    *string               `gorm:"column:image_url"`
	Category    enums.ProductCategory `gorm:"column:category;type:text;not null;default:'grocery'"`
	Stock       int                   `gorm:"column:stock;not null;default:0;check:stock >= 0"`
	Available   bool                  `gorm:"column:available;not null;default:false"`
	Disabled    bool                  `gorm:"column:disabled;not null;default:false"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	if p.Category == "" {
		p.Category = enums.DefaultProductCategory
	}
	p.Available = p.Stock > 0 && !p.Disabled
	return nil
}
