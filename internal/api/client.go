package api

import (
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/rickgao/tradier-stream/internal/auth"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/metrics"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// Base URLs.
const (
	ProductionURL = "https://api.tradier.com/v1"
	SandboxURL    = "https://sandbox.tradier.com/v1"
)

// Client provides access to the Tradier REST API.
type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	httpClient *fasthttp.Client
	limiter    ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger

	timeout  time.Duration
	decimals int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. tokens may be nil for
// unauthenticated endpoints.
func NewClient(baseURL string, tokens auth.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &fasthttp.Client{
			Name:                "tradier-stream",
			MaxIdleConnDuration: 90 * time.Second,
		},
		logger:   slog.Default(),
		timeout:  30 * time.Second,
		decimals: event.DefaultPriceDecimals,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-request timeout used when the context has no
// deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter checks a rate budget before every request.
func WithLimiter(l ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithPriceDecimals sets the fixed-point scale of decoded prices.
func WithPriceDecimals(d int) ClientOption {
	return func(c *Client) {
		c.decimals = d
	}
}

// Decimals returns the price scale of decoded responses.
func (c *Client) Decimals() int {
	return c.decimals
}
