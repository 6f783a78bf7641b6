package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greengrocer/storefront/pkg/db/models"
)

// OrderSummary is one row of the order history.
type OrderSummary struct {
	ID         uuid.UUID       `json:"id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemCount  int             `json:"item_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderList wraps one page of history plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderLineDTO exposes a frozen order line.
type OrderLineDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderDetail is the full order as returned to its owner.
type OrderDetail struct {
	ID         uuid.UUID       `json:"id"`
	AccountID  uuid.UUID       `json:"account_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemCount  int             `json:"item_count"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []OrderLineDTO  `json:"lines"`
}

// NewOrderSummary builds a history row from an order with its lines loaded.
func NewOrderSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:         order.ID,
		TotalPrice: order.TotalPrice,
		ItemCount:  itemCount(order.Lines),
		CreatedAt:  order.CreatedAt,
	}
}

// NewOrderDetail builds the detail DTO from an order with its lines loaded.
func NewOrderDetail(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:         order.ID,
		AccountID:  order.AccountID,
		TotalPrice: order.TotalPrice,
		ItemCount:  itemCount(order.Lines),
		CreatedAt:  order.CreatedAt,
		Lines:      make([]OrderLineDTO, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		detail.Lines = append(detail.Lines, OrderLineDTO{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal(),
		})
	}
	return detail
}

func itemCount(lines []models.OrderLine) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}
