// Command seed-db applies the schema and loads the catalog and the admin API
// key into PostgreSQL.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/wire"
)

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	workers      int
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "products JSON file, optionally .gz (default: embedded catalog)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent product upserts")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	opts.fromEnv(os.Getenv)
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or SHOP_SEED_API_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func (o *options) fromEnv(getenv func(string) string) {
	if o.databaseURL == "" {
		o.databaseURL = getenv("DATABASE_URL")
	}
	if o.apiKey == "" {
		o.apiKey = getenv("SHOP_SEED_API_KEY")
	}
	if o.apiKeyPepper == "" {
		o.apiKeyPepper = getenv("SHOP_API_KEY_PEPPER")
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	products, err := loadProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), products, opts.workers); err != nil {
		return errors.Wrap(err, "seed products")
	}

	key := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(opts.apiKeyPepper), opts.apiKey),
		Name:    "Default admin key",
		Scopes:  []string{handler.AdminScope},
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Upserted API key", zap.String("id", key.ID), zap.Strings("scopes", key.Scopes))
	return nil
}

// loadProducts reads the catalog from path, or the embedded one when path is
// empty. Files ending in .gz are decompressed.
func loadProducts(path string) ([]product.Product, error) {
	data := db.SeedProducts
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read file")
		}
		data = raw
		if strings.HasSuffix(path, ".gz") {
			if data, err = gunzip(raw); err != nil {
				return nil, errors.Wrap(err, "decompress")
			}
		}
	}

	var items []wire.Product
	if err := wire.Unmarshal(data, func(d *jx.Decoder) (err error) {
		items, err = wire.DecodeProducts(d)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	out := make([]product.Product, len(items))
	for i, it := range items {
		p := product.Product{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Images:      it.Images,
			Quantity:    it.Quantity,
		}
		if p.ID == "" {
			return nil, errors.Errorf("product %d (%q) has no _id", i, p.Name)
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "product %s", p.ID)
		}
		out[i] = p
	}
	return out, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

type productUpserter interface {
	Upsert(ctx context.Context, p *product.Product) error
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo productUpserter, products []product.Product, workers int) error {
	lg.Info("Upserting products", zap.Int("count", len(products)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range products {
		p := &products[i]
		g.Go(func() error {
			if err := repo.Upsert(gctx, p); err != nil {
				return err
			}
			lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
			return nil
		})
	}
	return g.Wait()
}
