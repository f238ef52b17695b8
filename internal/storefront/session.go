// Package storefront is the client-side composition root: it connects the
// API client, the persisted cart and checkout into a single Session.
package storefront

import (
	"context"
	"io"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/checkout"
	"github.com/xenking/storefront/internal/client"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/persist"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/wire"
)

// Catalog is the subset of the API client a Session needs.
type Catalog interface {
	ListProducts(ctx context.Context, search string) ([]wire.Product, error)
	GetProduct(ctx context.Context, id string) (*wire.Product, error)
	checkout.OrderCreator
}

// Session is one shopper's view of the store.
type Session struct {
	api     Catalog
	persist *persist.Persistor
	closer  io.Closer
	lg      *zap.Logger
	tp      trace.TracerProvider

	once      sync.Once
	submitter *checkout.Submitter
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(lg *zap.Logger) SessionOption {
	return func(s *Session) { s.lg = lg }
}

// WithTracerProvider sets the tracer provider used by checkout.
func WithTracerProvider(tp trace.TracerProvider) SessionOption {
	return func(s *Session) { s.tp = tp }
}

// Open builds a Session from cfg: it opens the configured storage, starts
// cart rehydration in the background and creates the API client.
func Open(ctx context.Context, cfg *Config, opts ...SessionOption) (*Session, error) {
	st, closer, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := newSession(st, closer, nil, cfg.CartKey, opts...)

	api, err := client.New(cfg.APIBaseURL,
		client.WithLogger(s.lg.Named("client")),
		client.WithTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		_ = closer.Close()
		return nil, errors.Wrap(err, "create api client")
	}
	s.api = api

	s.persist.Start(ctx)
	return s, nil
}

// NewSession builds a Session on explicit dependencies and starts
// rehydration.
func NewSession(ctx context.Context, st storage.Storage, api Catalog, opts ...SessionOption) *Session {
	s := newSession(st, nopCloser{}, api, persist.DefaultKey, opts...)
	s.persist.Start(ctx)
	return s
}

func newSession(st storage.Storage, closer io.Closer, api Catalog, key string, opts ...SessionOption) *Session {
	s := &Session{
		api:    api,
		closer: closer,
		lg:     zap.NewNop(),
		tp:     noop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}
	s.persist = persist.New(st,
		persist.WithKey(key),
		persist.WithLogger(s.lg.Named("persist")),
	)
	return s
}

// Ready is closed once the persisted cart has been loaded. Until then the
// cart should be presented as loading.
func (s *Session) Ready() <-chan struct{} { return s.persist.Ready() }

func (s *Session) cart(ctx context.Context) (*cart.Container, error) {
	c, err := s.persist.Cart(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "wait for cart")
	}
	s.once.Do(func() {
		s.submitter = checkout.NewSubmitter(c, s.api,
			checkout.WithLogger(s.lg.Named("checkout")),
			checkout.WithTracerProvider(s.tp),
		)
	})
	return c, nil
}

// Products lists the catalog.
func (s *Session) Products(ctx context.Context, search string) ([]wire.Product, error) {
	return s.api.ListProducts(ctx, search)
}

// Cart returns the current cart state.
func (s *Session) Cart(ctx context.Context) (cart.State, error) {
	c, err := s.cart(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return c.State(), nil
}

// AddProduct fetches productID from the catalog and adds quantity of it to
// the cart, snapshotting its name, price and first image.
func (s *Session) AddProduct(ctx context.Context, productID string, quantity int) (cart.State, error) {
	c, err := s.cart(ctx)
	if err != nil {
		return cart.State{}, err
	}
	p, err := s.api.GetProduct(ctx, productID)
	if err != nil {
		return cart.State{}, err
	}
	item := cart.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
	}
	if len(p.Images) > 0 {
		item.ImageURL = p.Images[0]
	}
	return c.AddToCart(item), nil
}

// Remove drops productID from the cart.
func (s *Session) Remove(ctx context.Context, productID string) (cart.State, error) {
	c, err := s.cart(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return c.RemoveFromCart(productID), nil
}

// UpdateQuantity sets the quantity of productID. Non-positive quantities
// are ignored.
func (s *Session) UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.State, error) {
	c, err := s.cart(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return c.UpdateQuantity(productID, quantity), nil
}

// Clear empties the cart.
func (s *Session) Clear(ctx context.Context) (cart.State, error) {
	c, err := s.cart(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return c.ClearCart(), nil
}

// Checkout submits the cart as an order.
func (s *Session) Checkout(ctx context.Context, form checkout.Form) (*checkout.Receipt, error) {
	if _, err := s.cart(ctx); err != nil {
		return nil, err
	}
	return s.submitter.Submit(ctx, form)
}

// Flush waits until the latest cart state has been written.
func (s *Session) Flush(ctx context.Context) error {
	return s.persist.Flush(ctx)
}

// Close flushes the cart and releases storage.
func (s *Session) Close(ctx context.Context) error {
	err := s.persist.Close(ctx)
	if cerr := s.closer.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "close storage")
	}
	return err
}
