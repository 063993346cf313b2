// Package leakcheck is a client and response adapter for the public LeakCheck
// API (https://leakcheck.io)
package leakcheck

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/internal/upstream"
)

const (
	Name           = "leakcheck"
	DefaultBaseURL = "https://leakcheck.io/api/public"
)

// Client searches the LeakCheck API for breached accounts
type Client struct {
	baseURL *url.URL
	apiKey  string

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
		if u, err := url.Parse(raw); err == nil && raw != "" {
			c.baseURL = u
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

// New creates a Client authenticated with apiKey, which travels as the key query parameter
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("leakcheck: apiKey required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		baseURL: u,
		apiKey:  apiKey,
		http:    http.DefaultClient,
		cfg: upstream.Config{
			Timeout:    upstream.DefaultTimeout,
			MaxRetries: upstream.DefaultMaxRetries,
			Rate:       1,
			Burst:      1,
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

// CacheKey returns the endpoint and request parameters identifying a search
// for email
func (c *Client) CacheKey(email string) (string, map[string]string) {
	return c.baseURL.String(), c.params(email)
}

func (c *Client) params(query string) map[string]string {
	return map[string]string{
		"key":   c.apiKey,
		"check": query,
	}
}

func (c *Client) newReq(ctx context.Context, query string) (*http.Request, error) {
	u := *c.baseURL
	q := u.Query()
	for k, v := range c.params(query) {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Search looks email up and returns the normalized breaches. Failures are
// *breach.ProviderError
func (c *Client) Search(ctx context.Context, email string) ([]breach.Record, error) {
	return c.search(ctx, email)
}

// UsernameCacheKey identifies a username search. LeakCheck detects the query
// type itself, so the request is the same shape as an email search
func (c *Client) UsernameCacheKey(username string) (string, map[string]string) {
	return c.CacheKey(username)
}

// SearchUsername looks a username up and returns the normalized breaches
func (c *Client) SearchUsername(ctx context.Context, username string) ([]breach.Record, error) {
	return c.search(ctx, username)
}

func (c *Client) search(ctx context.Context, query string) ([]breach.Record, error) {
	req, err := c.newReq(ctx, query)
	if err != nil {
		return nil, &breach.ProviderError{Provider: Name, Err: err}
	}

	resp, err := c.doer.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	records, err := Normalize(resp.Body)
	if err != nil {
		return nil, &breach.ProviderError{Provider: Name, Err: err}
	}
	return records, nil
}
