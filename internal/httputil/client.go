// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client shared by all source adapters:
// a fixed User-Agent, a request timeout, per-host rate limiting, opt-in
// backoff on HTTP 429, and typed errors for non-success statuses.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "research-digest/0.1"

	// maxBodyBytes caps how much of a response body Get will buffer.
	maxBodyBytes = 16 << 20
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Client wraps http.Client with the settings every adapter shares. It is
// safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string
	retries   int
	metrics   *observability.Metrics

	rateLimit float64
	rateBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client. Tests pass the
// httptest server's client here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a Client from the shared HTTP settings.
func NewClient(cfg types.HTTPConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: ua,
		retries:   cfg.Retry,
		rateLimit: cfg.RateLimit,
		rateBurst: burst,
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserAgent returns the User-Agent header value sent with every request.
func (c *Client) UserAgent() string { return c.userAgent }

// Do sends req after waiting for the host's rate limiter. Responses with a
// non-2xx status are closed and reported as *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	host := req.URL.Host
	if lim := c.limiter(host); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := DoWithRetry(ctx, c.http, req, c.retries)
	if err != nil {
		c.metrics.ObserveRequest(host, "error", time.Since(start))
		return nil, err
	}
	c.metrics.ObserveRequest(host, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		return nil, &StatusError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.ReadAll(ctx, req)
}

// ReadAll sends req and returns the full response body.
func (c *Client) ReadAll(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

func (c *Client) limiter(host string) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.rateLimit), c.rateBurst)
		c.limiters[host] = lim
	}
	return lim
}
