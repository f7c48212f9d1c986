package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/tradecraft/pkg/config"
	"github.com/wonny/tradecraft/pkg/logger"
	"github.com/wonny/tradecraft/pkg/redis"
)

// Client is an HTTP client wrapper with retry logic and logging
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	retryConfig  RetryConfig
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
	localLimiter *rate.Limiter
	userAgent    string
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// RequestOption mutates an outgoing request (headers, auth)
type RequestOption func(*http.Request)

// WithBearer sets an Authorization: Bearer header
func WithBearer(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithHeader sets an arbitrary header
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Default timeout
		},
		logger: log,
		retryConfig: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
			Enabled:      true,
		},
		userAgent: "tradecraft/1.0 (" + cfg.Env + ")",
	}
}

// NewWithTimeout creates a client with custom timeout
func NewWithTimeout(cfg *config.Config, log *logger.Logger, timeout time.Duration) *Client {
	client := New(cfg, log)
	client.httpClient.Timeout = timeout
	return client
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retryConfig.MaxRetries = maxRetries
	c.retryConfig.InitialDelay = initialDelay
	c.retryConfig.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// WithRateLimiter sets the distributed (Redis) rate limiter for this client
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// WithLocalLimit sets an in-process token bucket (requests per second).
// Used when Redis is disabled. perSecond <= 0 removes the limit.
func (c *Client) WithLocalLimit(perSecond float64) *Client {
	if perSecond <= 0 {
		c.localLimiter = nil
		return c
	}
	c.localLimiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	return c.do(req, opts)
}

// Post performs a POST request with body
func (c *Client) Post(ctx context.Context, url string, contentType string, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	return c.do(req, opts)
}

// PostJSON performs a POST request with JSON body
func (c *Client) PostJSON(ctx context.Context, url string, data interface{}, opts ...RequestOption) (*http.Response, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.Post(ctx, url, "application/json", bytes.NewReader(jsonData), opts...)
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
// Non-2xx responses return a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}, opts ...RequestOption) error {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// do executes the request with retry logic and logging
func (c *Client) do(req *http.Request, opts []RequestOption) (*http.Response, error) {
	var resp *http.Response
	var err error

	startTime := time.Now()
	url := req.URL.String()
	method := req.Method

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for _, opt := range opts {
		opt(req)
	}

	// Check rate limit
	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(req.Context(), *c.rateLimitCfg); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	} else if c.localLimiter != nil {
		if err := c.localLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	// Log request
	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	}).Debug("HTTP request started")

	// Execute with retry
	if c.retryConfig.Enabled {
		resp, err = c.doWithRetry(req)
	} else {
		resp, err = c.httpClient.Do(req)
	}

	// Calculate duration
	duration := time.Since(startTime)

	// Log response
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      url,
			"duration": duration,
			"error":    err.Error(),
		}).Debug("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// doWithRetry executes the request with exponential backoff retry
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		// Body readers are single-use; rewind for every retry
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", bodyErr)
			}
			req.Body = body
		}

		// Execute request
		resp, err = c.httpClient.Do(req)

		// Success
		if err == nil && !IsRetryableError(resp.StatusCode) {
			return resp, nil
		}

		// Last attempt - return error
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		if resp != nil {
			resp.Body.Close()
		}

		// Log retry
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		// Wait before retry
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > c.retryConfig.MaxDelay {
			delay = c.retryConfig.MaxDelay
		}
	}

	return resp, err
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == 429
}
