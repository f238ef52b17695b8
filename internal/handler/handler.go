// Package handler exposes the catalog and order services over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

const maxBodySize = 1 << 20

// ProductService is the catalog behaviour the handler depends on.
type ProductService interface {
	List(ctx context.Context, search string) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, p product.Product) (*product.Product, error)
	Update(ctx context.Context, p product.Product) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// OrderService is the order behaviour the handler depends on.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	List(ctx context.Context, filter order.Filter) ([]order.Order, error)
	SetConfirmed(ctx context.Context, id string, confirmed bool) (*order.Order, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator resolves admin API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. Absolute URLs are returned unchanged.
	ImageBaseURL string
}

// Handler serves the /api routes.
type Handler struct {
	products     ProductService
	orders       OrderService
	auth         Authenticator
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, products ProductService, orders OrderService, authn Authenticator) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		auth:         authn,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Register mounts the API routes on mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/orders", h.placeOrder)

	admin := func(fn http.HandlerFunc) http.Handler { return h.RequireAPIKey(fn) }
	mux.Handle("POST /api/products", admin(h.createProduct))
	mux.Handle("PUT /api/products/{id}", admin(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", admin(h.deleteProduct))
	mux.Handle("GET /api/orders", admin(h.listOrders))
	mux.Handle("PUT /api/orders/{id}/confirmation", admin(h.confirmOrder))
	mux.Handle("DELETE /api/orders/{id}", admin(h.deleteOrder))
}

// writeJSON encodes the body produced by enc with the given status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	enc(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.Error{Message: msg}.Encode)
}

// writeInternal logs err and hides it from the client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// readJSON decodes the request body with decode. Failures are reported to
// the client as 400 and false is returned.
func readJSON(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "read request body")
		return false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return false
	}
	if err := wire.Unmarshal(data, decode); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
