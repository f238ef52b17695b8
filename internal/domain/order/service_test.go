package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	product.Repository

	byID   map[string]product.Product
	getErr error
	calls  int
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	lastOrder *Order
	listed    []Order
	filter    Filter
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, error) {
	m.filter = f
	return m.listed, m.err
}

func (m *mockOrderRepo) SetConfirmed(_ context.Context, id string, confirmed bool) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &Order{ID: id, Confirmed: confirmed}, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, _ string) error {
	return m.err
}

// --- Helpers ---

func newTestProduct(id, name string, price decimal.Decimal) product.Product {
	return product.Product{
		ID:          id,
		Name:        name,
		Description: "test",
		Price:       price,
		Images:      []string{id + ".jpg"},
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func validRequest(items ...OrderItem) PlaceOrderRequest {
	return PlaceOrderRequest{
		Name:    "Amina",
		Surname: "Benali",
		Phone:   "0550 12 34 56",
		State:   "Alger",
		Items:   items,
	}
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_MissingFields(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := NewService(newProductRepo(), orders)

	req := validRequest(OrderItem{ProductID: "p1", Quantity: 1})
	req.Name = "   "
	req.State = ""

	_, err := svc.PlaceOrder(context.Background(), req)

	var mfErr *MissingFieldsError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, []string{"name", "state"}, mfErr.Fields)
	assert.Nil(t, orders.lastOrder)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := NewService(newProductRepo(p1), &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), validRequest(OrderItem{ProductID: "p1", Quantity: 0}))

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), validRequest(OrderItem{ProductID: "missing", Quantity: 1}))

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_PricesFromCatalog(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.RequireFromString("10.00"))
	p2 := newTestProduct("p2", "Gadget", decimal.RequireFromString("20.50"))
	products := newProductRepo(p1, p2)
	orders := &mockOrderRepo{}
	svc := NewService(products, orders)
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	o, err := svc.PlaceOrder(context.Background(), validRequest(
		OrderItem{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(1)},
		OrderItem{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, products.calls, "products fetched in one batch")
	assert.True(t, decimal.RequireFromString("40.50").Equal(o.Total))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].Price), "client price ignored")
	assert.Equal(t, "Widget", o.Items[0].Name)
	assert.False(t, o.Confirmed)
	assert.Equal(t, fixed, o.CreatedAt)
	assert.Same(t, o, orders.lastOrder)
	assert.Len(t, o.ID, 36)
}

func TestPlaceOrder_TrimsContactFields(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := NewService(newProductRepo(p1), &mockOrderRepo{})

	req := validRequest(OrderItem{ProductID: "p1", Quantity: 1})
	req.Name = "  Amina "

	o, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Amina", o.Name)
}

func TestPlaceOrder_ProductLookupError(t *testing.T) {
	products := newProductRepo()
	products.getErr = errors.New("db down")
	svc := NewService(products, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), validRequest(OrderItem{ProductID: "p1", Quantity: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestPlaceOrder_OrderCreateError(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := NewService(newProductRepo(p1), &mockOrderRepo{err: errors.New("db write failed")})

	_, err := svc.PlaceOrder(context.Background(), validRequest(OrderItem{ProductID: "p1", Quantity: 1}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestList_PopulatesProductNames(t *testing.T) {
	p1 := newTestProduct("p1", "Karakou", decimal.NewFromInt(10))
	products := newProductRepo(p1)
	orders := &mockOrderRepo{listed: []Order{
		{ID: "o1", Items: []OrderItem{{ProductID: "p1", Quantity: 1}, {ProductID: "gone", Quantity: 1}}},
		{ID: "o2", Items: []OrderItem{{ProductID: "p1", Quantity: 3}}},
	}}
	svc := NewService(products, orders)

	got, err := svc.List(context.Background(), Filter{Search: " amina ", UnconfirmedOnly: true})
	require.NoError(t, err)

	assert.Equal(t, Filter{Search: "amina", UnconfirmedOnly: true}, orders.filter)
	assert.Equal(t, 1, products.calls)
	assert.Equal(t, "Karakou", got[0].Items[0].Name)
	assert.Empty(t, got[0].Items[1].Name, "deleted products keep an empty name")
	assert.Equal(t, "Karakou", got[1].Items[0].Name)
}

func TestList_NoOrders(t *testing.T) {
	products := newProductRepo()
	svc := NewService(products, &mockOrderRepo{})

	got, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, products.calls)
}

func TestSetConfirmedAndDelete(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := NewService(newProductRepo(), orders)
	ctx := context.Background()

	o, err := svc.SetConfirmed(ctx, "o1", true)
	require.NoError(t, err)
	assert.True(t, o.Confirmed)
	require.NoError(t, svc.Delete(ctx, "o1"))

	orders.err = ErrNotFound
	_, err = svc.SetConfirmed(ctx, "o1", true)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "o1"), ErrNotFound)
}
