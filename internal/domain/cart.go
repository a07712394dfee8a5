package domain

import (
	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of a single add or update request.
// Merging repeated adds into one line may exceed it.
const MaxLineQuantity = 99

// DefaultCurrency is used for summaries of carts whose lines carry no currency.
const DefaultCurrency = "VND"

type Variant struct {
	Color string `json:"color" bson:"color"`
	Size  string `json:"size" bson:"size"`
}

// LineItem is one row of the cart. UnitPrice and display metadata are copied
// when the line is created and never refreshed.
type LineItem struct {
	ID        string          `json:"id" bson:"id"`
	ProductID string          `json:"productId" bson:"product_id"`
	Name      string          `json:"name" bson:"name"`
	Image     string          `json:"image,omitempty" bson:"image,omitempty"`
	Currency  string          `json:"currency" bson:"currency"`
	Variant   Variant         `json:"variant" bson:"variant"`
	UnitPrice decimal.Decimal `json:"unitPrice" bson:"unit_price"`
	Quantity  int             `json:"quantity" bson:"quantity"`
}

// Matches reports whether the line belongs to the given product and variant.
// Variant values are compared as opaque, case-sensitive strings.
func (i LineItem) Matches(productID string, v Variant) bool {
	return i.ProductID == productID && i.Variant == v
}

// LineItemInput is the payload of an add request.
type LineItemInput struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Currency  string          `json:"currency"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func (in LineItemInput) Variant() Variant {
	return Variant{Color: in.Color, Size: in.Size}
}

// Snapshot is the immutable cart state produced after every mutation.
// Total and ItemCount are always derived from Items via NewSnapshot.
type Snapshot struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// EmptySnapshot returns a cart with no lines.
func EmptySnapshot() Snapshot {
	return Snapshot{Items: []LineItem{}, Total: decimal.Zero}
}

// NewSnapshot builds a snapshot over items, computing the derived fields.
// The slice is owned by the snapshot afterwards.
func NewSnapshot(items []LineItem) Snapshot {
	if items == nil {
		items = []LineItem{}
	}
	return Snapshot{
		Items:     items,
		Total:     CartTotal(items),
		ItemCount: CartItemCount(items),
	}
}

// Lines returns a copy of the snapshot's items, safe for the caller to modify.
func (s Snapshot) Lines() []LineItem {
	out := make([]LineItem, len(s.Items))
	copy(out, s.Items)
	return out
}

// Clone returns a snapshot whose items the caller may modify.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Items: s.Lines(), Total: s.Total, ItemCount: s.ItemCount}
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find returns the line with the given id.
func (s Snapshot) Find(lineID string) (LineItem, bool) {
	for _, item := range s.Items {
		if item.ID == lineID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Currency returns the currency of the first line, or DefaultCurrency.
func (s Snapshot) Currency() string {
	if len(s.Items) > 0 && s.Items[0].Currency != "" {
		return s.Items[0].Currency
	}
	return DefaultCurrency
}
