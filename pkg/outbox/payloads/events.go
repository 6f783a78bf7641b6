package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is published once per successful checkout.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	AccountID  uuid.UUID         `json:"accountId"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	PlacedAt   time.Time         `json:"placedAt"`
	Lines      []OrderPlacedLine `json:"lines"`
}

// OrderPlacedLine mirrors one frozen order line.
type OrderPlacedLine struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// AccountRegisteredEvent is published when a shopper signs up.
type AccountRegisteredEvent struct {
	AccountID uuid.UUID `json:"accountId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
}
