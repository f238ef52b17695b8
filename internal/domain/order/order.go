package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a customer order with contact and shipping details.
type Order struct {
	ID        string
	Name      string
	Surname   string
	Phone     string
	State     string
	Items     []OrderItem
	Total     decimal.Decimal
	Confirmed bool
	CreatedAt time.Time
}

// OrderItem represents a single line item in an order. Price is the catalog
// price at the time the order was placed.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	// Name is filled from the catalog when orders are listed; it is not
	// stored.
	Name string `json:"-"`
}

// Filter narrows an order listing.
type Filter struct {
	// Search matches name or phone, ignoring case.
	Search string
	// UnconfirmedOnly hides confirmed orders.
	UnconfirmedOnly bool
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	List(ctx context.Context, filter Filter) ([]Order, error)
	SetConfirmed(ctx context.Context, id string, confirmed bool) (*Order, error)
	Delete(ctx context.Context, id string) error
}
