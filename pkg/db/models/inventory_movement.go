package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/pkg/enums"
)

// InventoryMovement is an append-only record of one stock adjustment.
type InventoryMovement struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID    *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Delta      int                   `gorm:"column:delta;not null"`
	StockAfter int                   `gorm:"column:stock_after;not null"`
	Reason     enums.InventoryReason `gorm:"column:reason;type:text;not null"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
