// Package persist keeps a cart durable across restarts.
//
// A Persistor rehydrates the cart from a storage.Storage once, in the
// background, and then writes the items slice back after every committed
// transition. Writes are best effort: failures are logged and dropped, and
// the cart keeps working in memory.
package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/storage"
)

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "cart"

// Option configures a Persistor.
type Option func(*Persistor)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(p *Persistor) { p.key = key }
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(lg *zap.Logger) Option {
	return func(p *Persistor) { p.lg = lg }
}

// WithWriteTimeout bounds a single storage write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Persistor) { p.writeTimeout = d }
}

// Persistor wires a cart.Container to a storage.Storage.
type Persistor struct {
	storage      storage.Storage
	key          string
	lg           *zap.Logger
	writeTimeout time.Duration

	// cart is written once before ready is closed.
	cart  *cart.Container
	ready chan struct{}

	mu      sync.Mutex
	pending *cart.State

	wake     chan struct{}
	flushReq chan chan struct{}
	purgeReq chan purgeRequest
	stop     chan struct{}
	done     chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
	baseCtx   context.Context
}

// New returns a Persistor for st. Call Start to rehydrate and begin writing.
func New(st storage.Storage, opts ...Option) *Persistor {
	p := &Persistor{
		storage:      st,
		key:          DefaultKey,
		lg:           zap.NewNop(),
		writeTimeout: 5 * time.Second,
		ready:        make(chan struct{}),
		wake:         make(chan struct{}, 1),
		flushReq:     make(chan chan struct{}),
		purgeReq:     make(chan purgeRequest),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	if p.storage == nil {
		p.storage = storage.Noop()
	}
	return p
}

// Key returns the storage key in use.
func (p *Persistor) Key() string { return p.key }

// Start launches rehydration and the writer. Only the first call has effect.
// ctx scopes the rehydration read; writes outlive its cancellation so that
// Close can still flush.
func (p *Persistor) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.baseCtx = context.WithoutCancel(ctx)
	go p.run()
	go p.rehydrate(ctx)
}

// Ready is closed once rehydration finished, successfully or not.
func (p *Persistor) Ready() <-chan struct{} { return p.ready }

// Cart blocks until rehydration finished and returns the container.
func (p *Persistor) Cart(ctx context.Context) (*cart.Container, error) {
	select {
	case <-p.ready:
		return p.cart, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Persistor) rehydrate(ctx context.Context) {
	defer close(p.ready)

	s, err := p.Load(ctx)
	if err != nil {
		p.lg.Debug("Cart rehydration failed, starting empty", zap.Error(err))
		s = cart.State{}
	}
	c := cart.NewContainer(s)
	c.Subscribe(p.schedule)
	p.cart = c

	p.lg.Debug("Cart rehydrated", zap.Int("items", len(c.Items())))
}

// Load reads and decodes the persisted state. A missing key yields an
// empty state and no error.
func (p *Persistor) Load(ctx context.Context) (cart.State, error) {
	data, err := p.storage.Get(ctx, p.key)
	if err != nil {
		return cart.State{}, errors.Wrap(err, "read cart")
	}
	if data == nil {
		return cart.State{}, nil
	}
	return Decode(data)
}

// Save encodes s and writes it synchronously.
func (p *Persistor) Save(ctx context.Context, s cart.State) error {
	if err := p.storage.Set(ctx, p.key, Encode(s)); err != nil {
		return errors.Wrap(err, "write cart")
	}
	return nil
}

type purgeRequest struct {
	ctx   context.Context
	reply chan error
}

// Purge drops any unwritten state and removes the persisted value. It runs
// on the writer so that no earlier write can land after the removal.
func (p *Persistor) Purge(ctx context.Context) error {
	if !p.started.Load() {
		return p.purge(ctx)
	}
	req := purgeRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case p.purgeReq <- req:
	case <-p.done:
		return p.purge(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persistor) purge(ctx context.Context) error {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()

	if err := p.storage.Remove(ctx, p.key); err != nil {
		return errors.Wrap(err, "remove cart")
	}
	return nil
}

// schedule records s as the latest state to write. Only the most recent
// state is kept; intermediate states are skipped.
func (p *Persistor) schedule(s cart.State) {
	p.mu.Lock()
	p.pending = &s
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Persistor) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.writePending()
		case reply := <-p.flushReq:
			p.writePending()
			close(reply)
		case req := <-p.purgeReq:
			req.reply <- p.purge(req.ctx)
		case <-p.stop:
			p.writePending()
			return
		}
	}
}

func (p *Persistor) writePending() {
	p.mu.Lock()
	s := p.pending
	p.pending = nil
	p.mu.Unlock()
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(p.baseCtx, p.writeTimeout)
	defer cancel()
	if err := p.Save(ctx, *s); err != nil {
		p.lg.Debug("Cart persist failed", zap.Error(err), zap.String("key", p.key))
	}
}

// Flush blocks until every transition committed before the call has been
// handed to storage.
func (p *Persistor) Flush(ctx context.Context) error {
	if !p.started.Load() {
		return nil
	}
	reply := make(chan struct{})
	select {
	case p.flushReq <- reply:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending state and stops the writer.
func (p *Persistor) Close(ctx context.Context) error {
	if !p.started.Load() {
		return nil
	}
	p.closeOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
