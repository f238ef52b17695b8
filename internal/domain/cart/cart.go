// Package cart holds the shopping cart state and the transitions that may be
// applied to it.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// LineItem is a single product entry in the cart. Name, Price and ImageURL
// are snapshots taken when the product was first added and are never
// refreshed from the catalog.
type LineItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	ImageURL  string
}

// State is the ordered list of line items, first added first. ProductID is
// unique among Items and every Quantity is at least 1.
type State struct {
	Items []LineItem
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{Items: slices.Clone(s.Items)}
}

// Find returns the item with the given product ID.
func (s State) Find(productID string) (LineItem, bool) {
	if i := s.index(productID); i >= 0 {
		return s.Items[i], true
	}
	return LineItem{}, false
}

// Len returns the number of distinct products in the cart.
func (s State) Len() int { return len(s.Items) }

// Count returns the total number of units across all items.
func (s State) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of price times quantity over all items.
func (s State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (s State) index(productID string) int {
	return slices.IndexFunc(s.Items, func(it LineItem) bool {
		return it.ProductID == productID
	})
}

// Action is a cart transition. Implementations are AddItem, RemoveItem,
// UpdateQuantity, RemoveOrdered and Clear.
type Action interface {
	apply(s State) (State, bool)
}

// AddItem appends Item, or increments the quantity of an existing item with
// the same product ID. The existing snapshot fields are kept.
type AddItem struct {
	Item LineItem
}

func (a AddItem) apply(s State) (State, bool) {
	if a.Item.ProductID == "" || a.Item.Quantity < 1 {
		return s, false
	}
	next := s.Clone()
	if i := next.index(a.Item.ProductID); i >= 0 {
		next.Items[i].Quantity += a.Item.Quantity
		return next, true
	}
	next.Items = append(next.Items, a.Item)
	return next, true
}

// RemoveItem drops the item with ProductID. Missing IDs are ignored.
type RemoveItem struct {
	ProductID string
}

func (a RemoveItem) apply(s State) (State, bool) {
	i := s.index(a.ProductID)
	if i < 0 {
		return s, false
	}
	next := s.Clone()
	next.Items = slices.Delete(next.Items, i, i+1)
	return next, true
}

// UpdateQuantity sets the quantity of an existing item. Non-positive
// quantities are ignored; they do not remove the item.
type UpdateQuantity struct {
	ProductID string
	Quantity  int
}

func (a UpdateQuantity) apply(s State) (State, bool) {
	if a.Quantity <= 0 {
		return s, false
	}
	i := s.index(a.ProductID)
	if i < 0 || s.Items[i].Quantity == a.Quantity {
		return s, false
	}
	next := s.Clone()
	next.Items[i].Quantity = a.Quantity
	return next, true
}

// RemoveOrdered subtracts the quantities of Items from the matching lines.
// Lines that drop to zero or below are removed; lines added after Items
// were taken are kept.
type RemoveOrdered struct {
	Items []LineItem
}

func (a RemoveOrdered) apply(s State) (State, bool) {
	next := s.Clone()
	changed := false
	for _, ordered := range a.Items {
		i := next.index(ordered.ProductID)
		if i < 0 || ordered.Quantity < 1 {
			continue
		}
		changed = true
		if left := next.Items[i].Quantity - ordered.Quantity; left > 0 {
			next.Items[i].Quantity = left
			continue
		}
		next.Items = slices.Delete(next.Items, i, i+1)
	}
	if !changed {
		return s, false
	}
	return next, true
}

// Clear empties the cart.
type Clear struct{}

func (Clear) apply(s State) (State, bool) {
	return State{Items: []LineItem{}}, len(s.Items) > 0
}

// Reduce applies a to s and reports whether the state changed. The input
// state is never modified.
func Reduce(s State, a Action) (State, bool) {
	if a == nil {
		return s, false
	}
	return a.apply(s)
}

// Normalize rebuilds s by replaying every item through AddItem, which drops
// invalid items and merges duplicate product IDs.
func Normalize(s State) State {
	out := State{Items: make([]LineItem, 0, len(s.Items))}
	for _, it := range s.Items {
		out, _ = AddItem{Item: it}.apply(out)
	}
	return out
}
