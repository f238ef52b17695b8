package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/storage"
)

// --- Mock implementations ---

type failingStorage struct {
	mu     sync.Mutex
	sets   int
	getErr error
	setErr error
}

func (f *failingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, f.getErr
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	return f.setErr
}

func (f *failingStorage) Remove(context.Context, string) error {
	return f.setErr
}

func (f *failingStorage) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// gatedStorage blocks Get until release is closed.
type gatedStorage struct {
	*storage.Memory
	release chan struct{}
}

func (g *gatedStorage) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Memory.Get(ctx, key)
}

// slowSetStorage holds every Set until release is closed and reports when
// one has started.
type slowSetStorage struct {
	*storage.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *slowSetStorage) Set(ctx context.Context, key string, value []byte) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.Memory.Set(ctx, key, value)
}

// --- Helpers ---

func testItem(id string, price string, qty int) cart.LineItem {
	return cart.LineItem{
		ProductID: id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		ImageURL:  "https://cdn.example.com/" + id + ".jpg",
	}
}

func startPersistor(t *testing.T, st storage.Storage) (*Persistor, *cart.Container) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	p := New(st)
	p.Start(ctx)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	c, err := p.Cart(ctx)
	require.NoError(t, err)
	return p, c
}

// --- Tests ---

func TestPersistor_WritesEveryTransition(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	p, c := startPersistor(t, mem)

	c.AddToCart(testItem("p1", "100", 1))
	c.AddToCart(testItem("p1", "100", 2))
	c.AddToCart(testItem("p2", "12.50", 1))
	require.NoError(t, p.Flush(ctx))

	data, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.NotNil(t, data)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, "p2", got.Items[1].ProductID)

	c.ClearCart()
	require.NoError(t, p.Flush(ctx))

	data, err = mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))
}

func TestPersistor_RehydratesPreviousSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	first := New(mem)
	first.Start(ctx)
	c1, err := first.Cart(ctx)
	require.NoError(t, err)
	c1.AddToCart(testItem("p1", "50", 2))
	c1.AddToCart(testItem("p2", "7.25", 1))
	require.NoError(t, first.Close(ctx))

	_, c2 := startPersistor(t, mem)

	assert.Equal(t, c1.State(), c2.State())
}

func TestPersistor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	states := []cart.State{
		{Items: []cart.LineItem{}},
		{Items: []cart.LineItem{testItem("p1", "100", 1)}},
		{Items: []cart.LineItem{
			testItem("a", "0.01", 9),
			testItem("b", "1999.99", 1),
			{ProductID: "c", Price: decimal.Zero, Quantity: 3},
		}},
	}

	for _, s := range states {
		p := New(storage.NewMemory(), WithKey("cart:test"))
		require.NoError(t, p.Save(ctx, s))

		got, err := p.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got.Items, len(s.Items))
		for i := range s.Items {
			assert.Equal(t, s.Items[i].ProductID, got.Items[i].ProductID)
			assert.Equal(t, s.Items[i].Name, got.Items[i].Name)
			assert.Equal(t, s.Items[i].Quantity, got.Items[i].Quantity)
			assert.Equal(t, s.Items[i].ImageURL, got.Items[i].ImageURL)
			assert.True(t, s.Items[i].Price.Equal(got.Items[i].Price))
		}
	}
}

func TestPersistor_MissingOrMalformedStartsEmpty(t *testing.T) {
	for name, payload := range map[string][]byte{
		"absent":    nil,
		"garbage":   []byte("not json"),
		"wrong":     []byte(`["items"]`),
		"bad types": []byte(`{"items":[{"productId":1}]}`),
	} {
		t.Run(name, func(t *testing.T) {
			mem := storage.NewMemory()
			if payload != nil {
				require.NoError(t, mem.Set(context.Background(), DefaultKey, payload))
			}

			_, c := startPersistor(t, mem)
			assert.Empty(t, c.Items())
		})
	}
}

func TestPersistor_ReadyGate(t *testing.T) {
	ctx := context.Background()
	gs := &gatedStorage{Memory: storage.NewMemory(), release: make(chan struct{})}
	require.NoError(t, gs.Memory.Set(ctx, DefaultKey, Encode(cart.State{Items: []cart.LineItem{testItem("p1", "1", 1)}})))

	p := New(gs)
	p.Start(ctx)
	t.Cleanup(func() { _ = p.Close(ctx) })

	select {
	case <-p.Ready():
		t.Fatal("ready before rehydration completed")
	default:
	}

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := p.Cart(shortCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(gs.release)
	c, err := p.Cart(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Items(), 1)
}

func TestPersistor_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	fs := &failingStorage{
		getErr: errors.New("storage unavailable"),
		setErr: errors.New("quota exceeded"),
	}
	p, c := startPersistor(t, fs)

	c.AddToCart(testItem("p1", "10", 1))
	c.UpdateQuantity("p1", 4)
	require.NoError(t, p.Flush(ctx))

	assert.Equal(t, 4, c.Items()[0].Quantity, "cart keeps working in memory")
	assert.GreaterOrEqual(t, fs.setCount(), 1)
}

func TestPersistor_NoopStorage(t *testing.T) {
	ctx := context.Background()
	p, c := startPersistor(t, storage.Noop())

	c.AddToCart(testItem("p1", "10", 1))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Purge(ctx))

	assert.Len(t, c.Items(), 1)
}

func TestPersistor_Purge(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	p, c := startPersistor(t, mem)

	c.AddToCart(testItem("p1", "10", 1))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Purge(ctx))

	data, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPersistor_PurgeWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	st := &slowSetStorage{
		Memory:  storage.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p, c := startPersistor(t, st)

	c.AddToCart(testItem("p1", "10", 1))
	<-st.entered

	purged := make(chan error, 1)
	go func() { purged <- p.Purge(ctx) }()

	select {
	case err := <-purged:
		t.Fatalf("purge finished before the pending write: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(st.release)
	require.NoError(t, <-purged)

	data, err := st.Memory.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Nil(t, data, "removed key must not be written back")
}

func TestPersistor_NotStarted(t *testing.T) {
	p := New(nil)

	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, DefaultKey, p.Key())
}

func TestPersistor_CloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	p := New(mem)
	p.Start(ctx)
	c, err := p.Cart(ctx)
	require.NoError(t, err)

	c.AddToCart(testItem("p9", "3", 2))
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))

	data, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
}
