// Package upstream performs the HTTP GETs provider clients issue against
// breach-data APIs: per-attempt timeouts, retries with exponential backoff on
// transient failures, and client-side rate limiting
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/leaksmap/breach"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second

	// maxBodyBytes bounds how much of a response body is read
	maxBodyBytes = 4 << 20
	// maxErrorSnippet bounds how much of an error body ends up in a message
	maxErrorSnippet = 200
)

// Config tunes a Client. Zero durations fall back to the defaults above, zero
// MaxRetries means a single attempt and a zero Rate disables rate limiting
type Config struct {
	Timeout    time.Duration
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Rate is the sustained number of requests per second; Burst the bucket size
	Rate  float64
	Burst int

	// AcceptStatus lists non-2xx statuses the provider uses for meaningful
	// answers (HIBP returns 404 for accounts with no breaches)
	AcceptStatus []int
}

// Response is a successful upstream answer
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues GET requests on behalf of one provider
type Client struct {
	provider string
	http     *http.Client
	cfg      Config
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// New creates a Client for the named provider. A nil httpClient means
// http.DefaultClient
func New(provider string, httpClient *http.Client, cfg Config, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = max(DefaultMaxDelay, cfg.BaseDelay)
	}

	c := &Client{
		provider: provider,
		http:     httpClient,
		cfg:      cfg,
		log:      log.With().Str("provider", provider).Logger(),
	}
	if cfg.Rate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
	}
	return c
}

// Provider returns the provider name errors are attributed to
func (c *Client) Provider() string {
	return c.provider
}

// Get sends req, retrying transient failures. req must be a GET without a
// body; it is cloned for every attempt. Failures are *breach.ProviderError
func (c *Client) Get(ctx context.Context, req *http.Request) (*Response, error) {
	var out *Response
	attempt := 0

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		resp, err := c.attempt(ctx, req)
		if err == nil {
			out = resp
			return nil
		}

		var pe *breach.ProviderError
		if errors.As(err, &pe) && pe.Temporary() && ctx.Err() == nil {
			c.log.Debug().
				Int("attempt", attempt).
				Int("status", pe.StatusCode).
				Err(pe.Err).
				Msg("transient upstream failure")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var pe *breach.ProviderError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, c.fail(0, err)
	}
	return out, nil
}

func (c *Client) attempt(ctx context.Context, req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(0, fmt.Errorf("rate limit: %w", err))
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.http.Do(req.Clone(attemptCtx))
	if err != nil {
		return nil, c.fail(0, redact(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("read body: %w", err))
	}

	if c.accepts(resp.StatusCode) {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}
	return nil, c.fail(resp.StatusCode, errors.New(describe(resp.StatusCode, body)))
}

func (c *Client) accepts(status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return slices.Contains(c.cfg.AcceptStatus, status)
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(c.cfg.MaxDelay, b)
	return retry.WithMaxRetries(c.cfg.MaxRetries, b)
}

func (c *Client) fail(status int, err error) *breach.ProviderError {
	return &breach.ProviderError{Provider: c.provider, StatusCode: status, Err: err}
}

// redact strips everything but scheme and host from the URL a transport
// error carries; query strings and paths hold API keys and addresses
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	clean := uerr.URL
	if u, perr := url.Parse(uerr.URL); perr == nil {
		clean = u.Scheme + "://" + u.Host
	}
	return &url.Error{Op: uerr.Op, URL: clean, Err: uerr.Err}
}

// describe summarizes an error response for a ProviderError message
func describe(status int, body []byte) string {
	text := http.StatusText(status)
	if text == "" {
		text = "unexpected status"
	}
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if snippet == "" {
		return text
	}
	if len(snippet) > maxErrorSnippet {
		snippet = snippet[:maxErrorSnippet] + "..."
	}
	return text + ": " + snippet
}
