package checkout

import (
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is the subtotal from which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(500000)
	// FlatShippingCost is charged below FreeShippingThreshold.
	FlatShippingCost = decimal.NewFromInt(30000)
)

// ShippingCost returns the shipping charged for a cart subtotal.
func ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingCost
}

type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// Summary is what the checkout page shows before the order is placed.
type Summary struct {
	Items     []OrderItem     `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

// Summarize prices a cart snapshot. An empty cart yields ErrEmptyCart.
func Summarize(s domain.Snapshot) (Summary, error) {
	if s.IsEmpty() {
		return Summary{}, ErrEmptyCart
	}

	shipping := ShippingCost(s.Total)
	return Summary{
		Items:     orderItems(s.Items),
		ItemCount: s.ItemCount,
		Subtotal:  s.Total,
		Shipping:  shipping,
		Total:     s.Total.Add(shipping),
		Currency:  s.Currency(),
	}, nil
}

func orderItems(lines []domain.LineItem) []OrderItem {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Color:     l.Variant.Color,
			Size:      l.Variant.Size,
		})
	}
	return items
}
