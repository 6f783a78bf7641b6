package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineView is one cart line as shown to the shopper.
type LineView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// View is the cart summary returned by every cart operation.
type View struct {
	Lines     []LineView      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func newView(lines []Line) *View {
	view := &View{Lines: make([]LineView, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		subtotal := line.Subtotal()
		view.Lines = append(view.Lines, LineView{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			ImageURL:  line.Product.ImageURL,
			UnitPrice: line.Product.Price,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		view.Total = view.Total.Add(subtotal)
		view.ItemCount += line.Quantity
	}
	return view
}
