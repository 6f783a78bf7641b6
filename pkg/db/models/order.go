package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the immutable record of a completed checkout.
type Order struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AccountID  uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	Lines      []OrderLine     `gorm:"foreignKey:OrderID"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderLine freezes the unit price paid for a product at checkout.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Position    int             `gorm:"column:position;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Subtotal is quantity times the frozen unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
