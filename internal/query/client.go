// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the query backend.
const (
	// DefaultTimeout is the default timeout for a single request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of attempts for transient errors.
	DefaultMaxRetries = 3

	// DefaultRatePerSec and DefaultBurst throttle how fast queries are sent.
	DefaultRatePerSec = 2.0
	DefaultBurst      = 4

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// MaxQueryLength bounds the free text sent to the backend.
	MaxQueryLength = 8000
)

// Error variables for common client failures.
var (
	// ErrNotConfigured indicates no backend endpoint is set.
	ErrNotConfigured = errors.New("query backend endpoint not configured")

	// ErrEmptyQuery indicates the user submitted only whitespace.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryTooLong indicates the query exceeds MaxQueryLength.
	ErrQueryTooLong = errors.New("query is too long")

	// ErrRateLimited indicates the backend answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrBadResponse indicates a 2xx body that is not valid JSON.
	ErrBadResponse = errors.New("backend returned an unreadable response")
)

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *BackendError) Temporary() bool {
	return e.Status >= 500
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts natural-language queries to the backend.
type Client struct {
	endpoint   string
	healthPath string
	httpClient *http.Client
	headers    map[string]string
	maxRetries int
	limiter    *rate.Limiter
	logger     *log.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxRetries sets the number of attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeaders adds static headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithRateLimit throttles submissions. A non-positive rate disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithHealthPath sets the path probed by Ping, relative to the endpoint host.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		c.healthPath = path
	}
}

// WithLogger sets the logger for request/response lines.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSpace(endpoint),
		healthPath: "/health",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		headers:    make(map[string]string),
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultBurst),
		logger:     log.Default(),
		userAgent:  "querychat",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured backend URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// IsConfigured returns true if an endpoint is set.
func (c *Client) IsConfigured() bool {
	return c.endpoint != ""
}

// Ask sends one query and returns the decoded answer.
//
// Transport errors and 5xx answers are retried with exponential backoff;
// 4xx answers, 429 included, are returned immediately.
func (c *Client) Ask(ctx context.Context, req Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if len([]rune(req.Query)) > MaxQueryLength {
		return nil, fmt.Errorf("%w: %d characters (max %d)", ErrQueryTooLong, len([]rune(req.Query)), MaxQueryLength)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		resp, err := c.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single POST to the endpoint.
func (c *Client) doRequest(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	// The query text is user data: log method and path only.
	start := time.Now()
	c.logger.Printf("[query] request: %s %s", req.Method, req.URL.Path)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	c.logger.Printf("[query] response: %d (%v)", httpResp.StatusCode, time.Since(start).Round(time.Millisecond))

	data, err := readResponse(httpResp)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, handleErrorResponse(httpResp.StatusCode, data)
	}

	resp, err := DecodeResponse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return resp, nil
}

// Ping checks that the backend host answers on its health path.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = c.healthPath
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 400 {
		return &BackendError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// setHeaders sets content negotiation and static headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts non-2xx answers to errors.
func handleErrorResponse(status int, body []byte) error {
	msg := errorText(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return &BackendError{Status: status, Message: msg}
}

// isRetryable reports whether an attempt may succeed if repeated.
func isRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Temporary()
	}
	if errors.Is(err, ErrRateLimited) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// calculateBackoff returns the delay before the given attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
