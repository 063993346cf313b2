// Package hibp is a client and response adapter for the HaveIBeenPwned v3 API
package hibp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/internal/upstream"
)

const (
	Name             = "hibp"
	DefaultBaseURL   = "https://haveibeenpwned.com/api/v3"
	DefaultUserAgent = "leaksmap/1.0"

	// HIBP allows 10 requests per minute on the entry-level key
	DefaultRate = 0.15
)

// Client searches the HaveIBeenPwned API for breached accounts
type Client struct {
	baseURL   *url.URL
	apiKey    string
	userAgent string

	http *http.Client
	cfg  upstream.Config
	log  zerolog.Logger
	doer *upstream.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client requests go through
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL points the client at another endpoint. Empty or unparsable
// values keep the default
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(strings.TrimRight(raw, "/")); err == nil && raw != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent overrides the User-Agent HIBP requires on every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds each request attempt
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.cfg.Timeout = d }
}

// WithRetry sets how often transient failures are retried and the first
// backoff delay
func WithRetry(maxRetries uint64, baseDelay time.Duration) Option {
	return func(c *Client) { c.cfg.MaxRetries, c.cfg.BaseDelay = maxRetries, baseDelay }
}

// WithRateLimit caps outgoing requests; perSecond <= 0 disables limiting
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.cfg.Rate, c.cfg.Burst = perSecond, burst }
}

// WithLogger sets the logger retries and failures are reported to
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client authenticated with apiKey, which is sent in the hibp-api-key header
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("hibp: apiKey required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		baseURL:   u,
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		http:      http.DefaultClient,
		cfg: upstream.Config{
			Timeout:      upstream.DefaultTimeout,
			MaxRetries:   upstream.DefaultMaxRetries,
			Rate:         DefaultRate,
			Burst:        1,
			AcceptStatus: []int{http.StatusNotFound},
		},
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.doer = upstream.New(Name, c.http, c.cfg, c.log)
	return c, nil
}

// Name returns the provider identifier stamped on every record
func (c *Client) Name() string {
	return Name
}

// CacheKey identifies a search by endpoint, account and response shape. The
// API key travels in a header and is not part of the key
func (c *Client) CacheKey(email string) (string, map[string]string) {
	return c.baseURL.String(), map[string]string{
		"account":          email,
		"truncateResponse": "false",
	}
}

func (c *Client) newReq(ctx context.Context, email string) (*http.Request, error) {
	// JoinPath unescapes its arguments, so the address goes in pre-escaped
	u := c.baseURL.JoinPath("breachedaccount", url.PathEscape(email))
	q := u.Query()
	q.Set("truncateResponse", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hibp-api-key", c.apiKey)
	req.Header.Set("user-agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Search returns the breaches HIBP knows for email. Failures are
// *breach.ProviderError
func (c *Client) Search(ctx context.Context, email string) ([]breach.Record, error) {
	req, err := c.newReq(ctx, email)
	if err != nil {
		return nil, &breach.ProviderError{Provider: Name, Err: err}
	}

	resp, err := c.doer.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	records, err := Normalize(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, &breach.ProviderError{Provider: Name, Err: err}
	}
	return records, nil
}
