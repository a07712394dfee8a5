// Package cart holds the pure transition function of the cart: every
// operation maps one snapshot to a brand-new one without side effects.
package cart

import (
	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// Operation is one of the closed set of cart transitions below.
type Operation interface {
	apply(domain.Snapshot) domain.Snapshot
}

// Add merges Input into the cart. LineID is used only if a new line is created.
type Add struct {
	Input  domain.LineItemInput
	LineID string
}

// Remove drops the line with LineID. Unknown ids are a no-op.
type Remove struct {
	LineID string
}

// SetQuantity replaces a line's quantity; Quantity <= 0 removes the line.
type SetQuantity struct {
	LineID   string
	Quantity int
}

// Clear empties the cart.
type Clear struct{}

// Load replaces the whole state, used at startup hydration.
type Load struct {
	Snapshot domain.Snapshot
}

// Reduce applies op to s. A nil op returns s unchanged.
func Reduce(s domain.Snapshot, op Operation) domain.Snapshot {
	if op == nil {
		return s
	}
	return op.apply(s)
}

func (op Add) apply(s domain.Snapshot) domain.Snapshot {
	return domain.NewSnapshot(Merge(s.Items, op.Input, op.LineID))
}

func (op Remove) apply(s domain.Snapshot) domain.Snapshot {
	items := make([]domain.LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.ID != op.LineID {
			items = append(items, item)
		}
	}
	return domain.NewSnapshot(items)
}

func (op SetQuantity) apply(s domain.Snapshot) domain.Snapshot {
	if op.Quantity <= 0 {
		return Remove{LineID: op.LineID}.apply(s)
	}
	items := s.Lines()
	for i := range items {
		if items[i].ID == op.LineID {
			items[i].Quantity = op.Quantity
		}
	}
	return domain.NewSnapshot(items)
}

func (Clear) apply(domain.Snapshot) domain.Snapshot {
	return domain.EmptySnapshot()
}

// Load never trusts the stored totals: they are recomputed from the items.
// Lines that could not exist in a live cart are dropped and duplicate
// variants are folded into the first occurrence.
func (op Load) apply(domain.Snapshot) domain.Snapshot {
	items := make([]domain.LineItem, 0, len(op.Snapshot.Items))
next:
	for _, item := range op.Snapshot.Items {
		if item.Quantity <= 0 || item.ID == "" || item.UnitPrice.IsNegative() {
			continue
		}
		for i := range items {
			if items[i].Matches(item.ProductID, item.Variant) {
				items[i].Quantity += item.Quantity
				continue next
			}
		}
		items = append(items, item)
	}
	return domain.NewSnapshot(items)
}
