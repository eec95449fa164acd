package api

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"fx-intel-bot/internal/logger"
)

// settings accumulates options before the resty client is built.
type settings struct {
	timeout    time.Duration
	baseURL    string
	headers    map[string]string
	authToken  string
	retryCount int
	retryWait  time.Duration
	retryMax   time.Duration
	useLogging bool
}

// ClientOption configures the API client.
type ClientOption func(*settings)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(s *settings) {
		s.timeout = timeout
	}
}

// WithBaseURL sets the base URL for all requests.
func WithBaseURL(baseURL string) ClientOption {
	return func(s *settings) {
		s.baseURL = baseURL
	}
}

// WithHeader sets a default header for all requests.
func WithHeader(key, value string) ClientOption {
	return func(s *settings) {
		s.headers[key] = value
	}
}

// WithHeaders sets several default headers at once.
func WithHeaders(headers map[string]string) ClientOption {
	return func(s *settings) {
		for k, v := range headers {
			s.headers[k] = v
		}
	}
}

// WithAuthToken sets a bearer token for all requests.
func WithAuthToken(token string) ClientOption {
	return func(s *settings) {
		s.authToken = token
	}
}

// WithRetry enables retries with exponential backoff between wait and max.
func WithRetry(count int, wait, max time.Duration) ClientOption {
	return func(s *settings) {
		s.retryCount = count
		s.retryWait = wait
		s.retryMax = max
	}
}

// WithLogging enables request/response logging through the global logger.
func WithLogging(enabled bool) ClientOption {
	return func(s *settings) {
		s.useLogging = enabled
	}
}

// NewClient builds a resty client with the given options. Logging is
// disabled by default.
func NewClient(opts ...ClientOption) *resty.Client {
	s := &settings{
		timeout: 30 * time.Second,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	client := resty.New().SetTimeout(s.timeout)
	if s.baseURL != "" {
		client.SetBaseURL(s.baseURL)
	}
	if len(s.headers) > 0 {
		client.SetHeaders(s.headers)
	}
	if s.authToken != "" {
		client.SetAuthToken(s.authToken)
	}
	if s.retryCount > 0 {
		client.SetRetryCount(s.retryCount).
			SetRetryWaitTime(s.retryWait).
			SetRetryMaxWaitTime(s.retryMax).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500 || r.StatusCode() == 429
			})
	}
	if s.useLogging {
		client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug(resp.Request.Context(), "HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL,
				"status", resp.StatusCode(),
				"duration_ms", resp.Time().Milliseconds(),
				"body_size", len(resp.Body()))
			return nil
		})
		client.OnError(func(req *resty.Request, err error) {
			logger.Warn(req.Context(), "HTTP request failed",
				"method", req.Method,
				"url", req.URL,
				"error", err.Error())
		})
	}

	return client
}

// CheckStatus converts a non-2xx response into an error carrying the status
// and body.
func CheckStatus(resp *resty.Response) error {
	if resp.IsError() {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// BrowserHeaders returns common browser headers to mimic a real browser
// request. Some feed hosts reject the default Go user agent.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// FeedHeaders returns headers for RSS and Atom feed endpoints.
func FeedHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/rss+xml, application/atom+xml, application/xml, text/xml, */*",
		"Accept-Language": "en-US,en;q=0.9",
	}
}
