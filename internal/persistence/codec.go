package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// CurrentVersion is written into every record. Records without a version
// field are version 0: flat color/size and a numeric "price" per line.
const CurrentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported cart record version")
	ErrMalformedRecord    = errors.New("malformed cart record")
)

type record struct {
	Version   int               `json:"version"`
	Items     []domain.LineItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"itemCount"`
}

// storedItem accepts the line shapes of every known version.
type storedItem struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	Name      string           `json:"name"`
	Image     string           `json:"image"`
	Currency  string           `json:"currency"`
	Variant   *domain.Variant  `json:"variant"`
	Color     string           `json:"color"`
	Size      string           `json:"size"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Price     *decimal.Decimal `json:"price"`
	Quantity  int              `json:"quantity"`
}

type storedRecord struct {
	Version *int         `json:"version"`
	Items   []storedItem `json:"items"`
}

// Encode serializes a snapshot as a current-version record.
func Encode(s domain.Snapshot) ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(record{
		Version:   CurrentVersion,
		Items:     items,
		Total:     s.Total,
		ItemCount: s.ItemCount,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// Decode parses a record of any known version. Stored totals are ignored;
// the returned snapshot derives them from the items.
func Decode(data []byte) (domain.Snapshot, error) {
	var rec storedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Snapshot{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	version := 0
	if rec.Version != nil {
		version = *rec.Version
	}
	if version < 0 || version > CurrentVersion {
		return domain.Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	items := make([]domain.LineItem, 0, len(rec.Items))
	for i, si := range rec.Items {
		item, err := si.migrate(version)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return domain.NewSnapshot(items), nil
}

func (si storedItem) migrate(version int) (domain.LineItem, error) {
	item := domain.LineItem{
		ID:        si.ID,
		ProductID: si.ProductID,
		Name:      si.Name,
		Image:     si.Image,
		Currency:  si.Currency,
		Quantity:  si.Quantity,
	}

	// Version 0 records come in the flat storefront shape or in the line
	// shape without a version; either field set is accepted in both versions.
	price := firstPrice(si.UnitPrice, si.Price)
	if version == 0 {
		price = firstPrice(si.Price, si.UnitPrice)
	}
	if price == nil {
		return item, fmt.Errorf("%w: missing unitPrice", ErrMalformedRecord)
	}
	item.UnitPrice = *price

	switch {
	case si.Color != "" || si.Size != "":
		item.Variant = domain.Variant{Color: si.Color, Size: si.Size}
	case si.Variant != nil:
		item.Variant = *si.Variant
	}

	if item.ProductID == "" {
		return item, fmt.Errorf("%w: missing productId", ErrMalformedRecord)
	}
	return item, nil
}

func firstPrice(prices ...*decimal.Decimal) *decimal.Decimal {
	for _, p := range prices {
		if p != nil {
			return p
		}
	}
	return nil
}
