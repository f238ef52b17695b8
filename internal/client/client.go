// Package client is the storefront's HTTP client for the catalog and order
// API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/wire"
)

const maxBodySize = 4 << 20

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(lg *zap.Logger) Option {
	return func(cl *Client) { cl.lg = lg }
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// Client talks to the storefront API rooted at a base URL such as
// http://localhost:8080/api.
type Client struct {
	base    *url.URL
	http    *http.Client
	lg      *zap.Logger
	timeout time.Duration
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	c := &Client{
		base: u,
		http: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		lg:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListProducts fetches the catalog, optionally filtered by search.
func (c *Client) ListProducts(ctx context.Context, search string) ([]wire.Product, error) {
	u := c.base.JoinPath("products")
	if search != "" {
		u.RawQuery = url.Values{"search": {search}}.Encode()
	}
	var out []wire.Product
	err := c.do(ctx, http.MethodGet, u, nil, func(d *jx.Decoder) error {
		var err error
		out, err = wire.DecodeProducts(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return out, nil
}

// GetProduct fetches one product. A missing product yields an *APIError
// with status 404.
func (c *Client) GetProduct(ctx context.Context, id string) (*wire.Product, error) {
	var p wire.Product
	if err := c.do(ctx, http.MethodGet, c.base.JoinPath("products", id), nil, p.Decode); err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// CreateOrder submits an order and returns the order created by the server.
func (c *Client) CreateOrder(ctx context.Context, req wire.OrderRequest) (*wire.Order, error) {
	var o wire.Order
	if err := c.do(ctx, http.MethodPost, c.base.JoinPath("orders"), wire.Marshal(req.Encode), o.Decode); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body []byte, decode func(*jx.Decoder) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e wire.Error
		if jx.DecodeBytes(data).Next() == jx.Object && e.Decode(jx.DecodeBytes(data)) == nil {
			apiErr.Message = e.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.lg.Debug("API request failed",
			zap.String("method", method),
			zap.String("url", u.String()),
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Message),
		)
		return apiErr
	}

	if err := wire.Unmarshal(data, decode); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
