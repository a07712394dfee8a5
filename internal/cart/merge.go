package cart

import "github.com/fjod/go_cart/cart-engine/internal/domain"

// Merge resolves an add request against items. A line with the same product
// and variant has its quantity increased by the requested amount, keeping its
// price and position. Otherwise a new line with lineID is appended. items is
// never modified; the returned slice is fresh.
func Merge(items []domain.LineItem, in domain.LineItemInput, lineID string) []domain.LineItem {
	out := make([]domain.LineItem, len(items), len(items)+1)
	copy(out, items)

	variant := in.Variant()
	for i := range out {
		if out[i].Matches(in.ProductID, variant) {
			out[i].Quantity += in.Quantity
			return out
		}
	}

	return append(out, domain.LineItem{
		ID:        lineID,
		ProductID: in.ProductID,
		Name:      in.Name,
		Image:     in.Image,
		Currency:  in.Currency,
		Variant:   variant,
		UnitPrice: in.UnitPrice,
		Quantity:  in.Quantity,
	})
}
