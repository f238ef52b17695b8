package storefront

import (
	"context"
	"io"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/file"
	redisstore "github.com/xenking/storefront/internal/storage/redis"
)

// OpenStorage selects the cart storage variant for rawURL:
//
//	""  or "none"        no durable storage
//	"memory:"            process-local map
//	"file://<dir>"       one file per key in dir
//	"redis://..."        shared redis server
//
// The returned closer releases any underlying connection.
func OpenStorage(ctx context.Context, cfg *Config) (storage.Storage, io.Closer, error) {
	raw := strings.TrimSpace(cfg.StorageURL)
	switch {
	case raw == "" || raw == "none":
		return storage.Noop(), nopCloser{}, nil
	case raw == "memory:" || raw == "memory://":
		return storage.NewMemory(), nopCloser{}, nil
	case strings.HasPrefix(raw, "file://"):
		dir := strings.TrimPrefix(raw, "file://")
		st, err := file.New(dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file storage")
		}
		return st, nopCloser{}, nil
	case strings.HasPrefix(raw, "redis://"), strings.HasPrefix(raw, "rediss://"):
		st, err := redisstore.Open(ctx, raw,
			redisstore.WithPrefix(cfg.RedisPrefix),
			redisstore.WithTTL(cfg.RedisTTL),
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open redis storage")
		}
		return st, st, nil
	default:
		return nil, nil, errors.Errorf("unsupported storage url %q", raw)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
