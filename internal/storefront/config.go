package storefront

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultStorageURL = "file://.storefront"

// Config holds the storefront client configuration, loadable from
// environment variables (SHOP_STOREFRONT_ prefix) or YAML config files.
type Config struct {
	APIBaseURL     string        `default:"http://localhost:8080/api" usage:"Storefront API base URL"`
	StorageURL     string        `default:"file://.storefront" usage:"Cart storage: none, memory:, file://<dir> or redis://..."`
	CartKey        string        `default:"cart" usage:"Storage key the cart is persisted under"`
	RedisPrefix    string        `default:"storefront:" usage:"Key prefix for redis cart storage"`
	RedisTTL       time.Duration `default:"720h" usage:"Expiry of carts kept in redis (0 keeps forever)"`
	RequestTimeout time.Duration `default:"10s" usage:"Timeout of a single API request"`
}

// LoadConfig loads the storefront configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP_STOREFRONT",
		SkipFlags: true,
		Files:     []string{"storefront.yaml", "/etc/shop/storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)
	return &cfg, nil
}

// applyPlatformDefaults stores the cart in the platform-provided REDIS_URL
// when no storage was configured explicitly.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.StorageURL != defaultStorageURL {
		return
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.StorageURL = v
	}
}
