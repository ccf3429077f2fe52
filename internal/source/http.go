package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRatePerSecond = 2
	defaultRateBurst     = 4
	defaultRetries       = 3
	defaultInitialDelay  = 500 * time.Millisecond
	defaultMaxDelay      = 10 * time.Second
	userAgent            = "spotprice/1.0"
)

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	RetryAfter string // For rate limit errors
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Temporary reports whether retrying may help.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newHTTPError(provider string, resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{Provider: provider, StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		e.Code = "UNAUTHORIZED"
		e.Message = "Unauthorized: invalid API token"
	case http.StatusForbidden:
		e.Code = "INVALID_API_KEY"
		e.Message = "Invalid API token or insufficient permissions"
	case http.StatusNotFound:
		e.Code = "NOT_FOUND"
		e.Message = "No data published for the requested range"
	case http.StatusTooManyRequests:
		e.RetryAfter = resp.Header.Get("Retry-After")
		e.Code = "RATE_LIMIT_EXCEEDED"
		e.Message = fmt.Sprintf("Rate limit exceeded. Retry after: %s", e.RetryAfter)
	default:
		e.Code = "API_ERROR"
		e.Message = fmt.Sprintf("API returned status %d: %s", resp.StatusCode, snippet(body))
	}
	return e
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

type ClientOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
	MaxRetries    uint64
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Logger        *slog.Logger
	HTTPClient    *http.Client
}

// Client is the shared HTTP transport for all adapters: a rate limiter in
// front, exponential backoff on 429/5xx/network errors behind.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	opts    ClientOptions
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaultRateBurst
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
		logger:  opts.Logger.With(slog.String("component", "source")),
		opts:    opts,
	}
}

// Request describes one provider call. Body is resent on every attempt.
type Request struct {
	Provider string
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
}

func (c *Client) Get(ctx context.Context, provider, url string, header http.Header) ([]byte, error) {
	return c.Do(ctx, Request{Provider: provider, Method: http.MethodGet, URL: url, Header: header})
}

// Do executes r with retries and returns the response body of the first 2xx answer.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialDelay
	b.MaxInterval = c.opts.MaxDelay
	b.MaxElapsedTime = 0 // bounded by retries and ctx
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.MaxRetries), ctx)

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := c.once(ctx, r, attempt)
		if err != nil {
			if he, ok := err.(*HTTPError); ok && !he.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("provider request failed, retrying",
			"provider", r.Provider, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, r Request, attempt int) ([]byte, error) {
	var reader io.Reader
	if r.Body != nil {
		reader = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	c.logger.Debug("provider request", "provider", r.Provider, "method", r.Method, "path", req.URL.Path, "attempt", attempt)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("provider response", "provider", r.Provider, "status", resp.StatusCode,
		"bytes", len(body), "duration", elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := newHTTPError(r.Provider, resp, body)
		if he.StatusCode == http.StatusTooManyRequests {
			if wait := parseRetryAfter(he.RetryAfter); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, backoff.Permanent(ctx.Err())
				}
			}
		}
		return nil, he
	}
	return body, nil
}

// parseRetryAfter handles the delay-seconds form; dates are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
