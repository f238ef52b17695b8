package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

// --- Mock implementations ---

type mockProducts struct {
	products  []product.Product
	search    string
	created   *product.Product
	updated   *product.Product
	deletedID string
	err       error
}

func (m *mockProducts) List(_ context.Context, search string) ([]product.Product, error) {
	m.search = search
	return m.products, m.err
}

func (m *mockProducts) Get(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProducts) Create(_ context.Context, p product.Product) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p.ID = "new-id"
	m.created = &p
	return &p, nil
}

func (m *mockProducts) Update(_ context.Context, p product.Product) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.updated = &p
	return &p, nil
}

func (m *mockProducts) Delete(_ context.Context, id string) error {
	m.deletedID = id
	return m.err
}

type mockOrders struct {
	lastReq   order.PlaceOrderRequest
	filter    order.Filter
	confirmed *bool
	listed    []order.Order
	err       error
}

func (m *mockOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.Order, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &order.Order{
		ID:        "o1",
		Name:      req.Name,
		Surname:   req.Surname,
		Phone:     req.Phone,
		State:     req.State,
		Items:     []order.OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(10), Name: "Karakou"}},
		Total:     decimal.NewFromInt(20),
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	m.filter = f
	return m.listed, m.err
}

func (m *mockOrders) SetConfirmed(_ context.Context, id string, confirmed bool) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.confirmed = &confirmed
	return &order.Order{ID: id, Confirmed: confirmed}, nil
}

func (m *mockOrders) Delete(context.Context, string) error { return m.err }

type mockAuth struct{}

func (mockAuth) Authenticate(_ context.Context, key string) (*auth.APIKeyInfo, error) {
	switch key {
	case "admin-key":
		return &auth.APIKeyInfo{ID: "admin", Scopes: []string{AdminScope}}, nil
	case "reader-key":
		return &auth.APIKeyInfo{ID: "reader"}, nil
	case "outage-key":
		return nil, errors.New("find api key: connection refused")
	default:
		return nil, auth.ErrUnauthorized
	}
}

// --- Helpers ---

type fixture struct {
	products *mockProducts
	orders   *mockOrders
	mux      *http.ServeMux
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		products: &mockProducts{products: []product.Product{{
			ID:          "p1",
			Name:        "Karakou",
			Description: "Velvet jacket",
			Price:       decimal.RequireFromString("24500.50"),
			Images:      []string{"karakou.jpg", "https://cdn.example.com/k2.jpg"},
			Quantity:    3,
		}}},
		orders: &mockOrders{},
		mux:    http.NewServeMux(),
	}
	New(cfg, f.products, f.orders, mockAuth{}).Register(f.mux)
	return f
}

func (f *fixture) do(method, target, body, apiKey string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e wire.Error
	require.NoError(t, e.Decode(jx.DecodeBytes(w.Body.Bytes())))
	return e.Message
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(Config{ImageBaseURL: "https://img.example.com/"})

	w := f.do(http.MethodGet, "/api/products?search=velvet", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "velvet", f.products.search)

	products, err := wire.DecodeProducts(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, []string{"https://img.example.com/karakou.jpg", "https://cdn.example.com/k2.jpg"}, products[0].Images)
	assert.True(t, decimal.RequireFromString("24500.5").Equal(products[0].Price))
}

func TestListProducts_Empty(t *testing.T) {
	f := newFixture(Config{})
	f.products.products = nil

	w := f.do(http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListProducts_Error(t *testing.T) {
	f := newFixture(Config{})
	f.products.err = errors.New("db down")

	w := f.do(http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w))
}

func TestGetProduct(t *testing.T) {
	f := newFixture(Config{})

	w := f.do(http.MethodGet, "/api/products/p1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p wire.Product
	require.NoError(t, p.Decode(jx.DecodeBytes(w.Body.Bytes())))
	assert.Equal(t, "Karakou", p.Name)
	assert.Equal(t, "karakou.jpg", p.Images[0])

	w = f.do(http.MethodGet, "/api/products/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "product not found", decodeError(t, w))
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(Config{})

	body := `{"name":"Amina","surname":"Benali","phone":"0550","state":"Alger",
		"products":[{"productId":"p1","quantity":2,"price":1}]}`
	w := f.do(http.MethodPost, "/api/orders", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "Amina", f.orders.lastReq.Name)
	require.Len(t, f.orders.lastReq.Items, 1)
	assert.Equal(t, 2, f.orders.lastReq.Items[0].Quantity)

	var o wire.Order
	require.NoError(t, o.Decode(jx.DecodeBytes(w.Body.Bytes())))
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, "Karakou", o.Products[0].Name)
	assert.True(t, decimal.NewFromInt(20).Equal(o.Total))
}

func TestPlaceOrder_ItemsAlias(t *testing.T) {
	f := newFixture(Config{})

	w := f.do(http.MethodPost, "/api/orders", `{"name":"a","surname":"b","phone":"c","state":"d","items":[{"productId":"p1","quantity":1}]}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, f.orders.lastReq.Items, 1)
}

func TestPlaceOrder_Errors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
	}{
		{"EmptyItems", order.ErrEmptyItems, http.StatusBadRequest},
		{"MissingFields", &order.MissingFieldsError{Fields: []string{"phone"}}, http.StatusBadRequest},
		{"InvalidQuantity", &order.InvalidQuantityError{ProductID: "p1"}, http.StatusUnprocessableEntity},
		{"ProductNotFound", &order.ProductNotFoundError{ProductID: "x"}, http.StatusUnprocessableEntity},
		{"Internal", errors.New("db down"), http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(Config{})
			f.orders.err = errors.Wrap(tc.err, "place order")

			w := f.do(http.MethodPost, "/api/orders", `{"products":[]}`, "")
			assert.Equal(t, tc.status, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestPlaceOrder_BadBody(t *testing.T) {
	f := newFixture(Config{})

	for _, body := range []string{"", "not json", `{"products":"nope"}`} {
		w := f.do(http.MethodPost, "/api/orders", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}

	w := f.do(http.MethodPost, "/api/orders", `{"name":"`+strings.Repeat("x", maxBodySize)+`"}`, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAdminRoutes_RequireAPIKey(t *testing.T) {
	f := newFixture(Config{})

	for _, route := range []struct{ method, target string }{
		{http.MethodPost, "/api/products"},
		{http.MethodPut, "/api/products/p1"},
		{http.MethodDelete, "/api/products/p1"},
		{http.MethodGet, "/api/orders"},
		{http.MethodPut, "/api/orders/o1/confirmation"},
		{http.MethodDelete, "/api/orders/o1"},
	} {
		w := f.do(route.method, route.target, "{}", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.target)

		w = f.do(route.method, route.target, "{}", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = f.do(route.method, route.target, "{}", "reader-key")
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
	assert.Nil(t, f.products.created)
	assert.Empty(t, f.products.deletedID)
}

func TestAdminRoutes_KeyLookupFailure(t *testing.T) {
	f := newFixture(Config{})

	w := f.do(http.MethodGet, "/api/orders", "", "outage-key")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestCreateAndUpdateProduct(t *testing.T) {
	f := newFixture(Config{})

	w := f.do(http.MethodPost, "/api/products",
		`{"name":" Burnous ","description":"Wool cloak","price":"18000","images":["b.jpg"],"quantity":5}`, "admin-key")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, f.products.created)
	assert.Equal(t, "Burnous", f.products.created.Name)
	assert.Equal(t, 5, f.products.created.Quantity)

	w = f.do(http.MethodPut, "/api/products/p9", `{"_id":"ignored","name":"X","description":"Y","price":1}`, "admin-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p9", f.products.updated.ID, "path ID wins")

	f.products.err = &product.ValidationError{Fields: []string{"name"}}
	w = f.do(http.MethodPost, "/api/products", `{"price":1}`, "admin-key")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.products.err = product.ErrNotFound
	w = f.do(http.MethodDelete, "/api/products/p1", "", "admin-key")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.products.err = nil
	w = f.do(http.MethodDelete, "/api/products/p1", "", "admin-key")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "p1", f.products.deletedID)
}

func TestListOrders(t *testing.T) {
	f := newFixture(Config{})
	f.orders.listed = []order.Order{{ID: "o1", Name: "Amina"}, {ID: "o2", Name: "Yacine", Confirmed: true}}

	w := f.do(http.MethodGet, "/api/orders?search=amina&unconfirmed=true", "", "admin-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.Filter{Search: "amina", UnconfirmedOnly: true}, f.orders.filter)

	orders, err := wire.DecodeOrders(jx.DecodeBytes(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	w = f.do(http.MethodGet, "/api/orders?unconfirmed=maybe", "", "admin-key")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmAndDeleteOrder(t *testing.T) {
	f := newFixture(Config{})

	w := f.do(http.MethodPut, "/api/orders/o1/confirmation", `{"confirmed":true}`, "admin-key")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.orders.confirmed)
	assert.True(t, *f.orders.confirmed)

	w = f.do(http.MethodPut, "/api/orders/o1/confirmation", `{}`, "admin-key")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodDelete, "/api/orders/o1", "", "admin-key")
	assert.Equal(t, http.StatusNoContent, w.Code)

	f.orders.err = errors.Wrap(order.ErrNotFound, "delete order")
	w = f.do(http.MethodDelete, "/api/orders/o1", "", "admin-key")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", decodeError(t, w))
}
