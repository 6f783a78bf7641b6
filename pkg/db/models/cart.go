package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the durable cart owned by one account.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID  `gorm:"column:account_id;type:uuid;not null;uniqueIndex:carts_account_id_key"`
	Lines     []CartLine `gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// CartLine holds one product in a cart. The serial ID doubles as insertion order.
type CartLine struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:cart_lines_cart_product_key,priority:1"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:cart_lines_cart_product_key,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null;check:quantity >= 1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
