package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Observer is notified with the new state after every committed transition.
// Observers run while the container lock is held, in commit order, so they
// must not block or call back into the container.
type Observer func(State)

// Container owns the authoritative in-memory cart. It is safe for
// concurrent use.
type Container struct {
	mu        sync.Mutex
	state     State
	observers []Observer
}

// NewContainer returns a container seeded with initial. The initial state is
// normalized so the container invariants hold even for untrusted input.
func NewContainer(initial State) *Container {
	return &Container{state: Normalize(initial)}
}

// Subscribe registers o for all subsequent transitions.
func (c *Container) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Dispatch applies a and returns the resulting state. Observers are only
// notified when the state actually changed.
func (c *Container) Dispatch(a Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, changed := Reduce(c.state, a)
	if !changed {
		return c.state.Clone()
	}
	c.state = next
	for _, o := range c.observers {
		o(next.Clone())
	}
	return next.Clone()
}

// AddToCart adds item or increments the quantity of a matching product.
func (c *Container) AddToCart(item LineItem) State {
	return c.Dispatch(AddItem{Item: item})
}

// RemoveFromCart removes the product if present.
func (c *Container) RemoveFromCart(productID string) State {
	return c.Dispatch(RemoveItem{ProductID: productID})
}

// UpdateQuantity sets the quantity of a product already in the cart.
func (c *Container) UpdateQuantity(productID string, quantity int) State {
	return c.Dispatch(UpdateQuantity{ProductID: productID, Quantity: quantity})
}

// RemoveOrdered subtracts the lines of an order placed from an earlier
// snapshot, keeping anything added since.
func (c *Container) RemoveOrdered(items []LineItem) State {
	return c.Dispatch(RemoveOrdered{Items: items})
}

// ClearCart empties the cart.
func (c *Container) ClearCart() State {
	return c.Dispatch(Clear{})
}

// State returns a copy of the current state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Items returns a copy of the current line items.
func (c *Container) Items() []LineItem {
	return c.State().Items
}

// Total returns the current cart total.
func (c *Container) Total() decimal.Decimal {
	return c.State().Total()
}
