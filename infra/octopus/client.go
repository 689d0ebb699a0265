// Package octopus reads consumption, meter point and tariff data from the
// Octopus Energy REST API and exposes them as paged sources for the sync
// engine.
package octopus

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/octowatt/core/logger"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.octopus.energy/v1"

// Account identifies the meters read by a Client.
type Account struct {
	APIKey         string `json:"api_key"`
	MPAN           string `json:"mpan"`
	ElectricSerial string `json:"electric_serial"`
	MPRN           string `json:"mprn"`
	GasSerial      string `json:"gas_serial"`
}

// Client talks to the Octopus API on behalf of one account.
type Client struct {
	baseURL    string
	account    Account
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// NewClient returns a client with a 30s timeout, three retries and no rate
// limit.
func NewClient(account Account, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		account:      account,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Inf, 1),
		log:          logger.Nop{},
		maxRetries:   3,
		retryBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets how often a retryable request is repeated and the first
// backoff.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
