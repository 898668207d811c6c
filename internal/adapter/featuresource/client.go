package featuresource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryAfter = 5 * time.Second
	maxRetryAfter     = time.Minute
	maxAttempts       = 3
)

// ErrPayloadTooLarge is returned when a remote collection exceeds the size limit.
var ErrPayloadTooLarge = errors.New("feature collection too large")

// TooManyRequestsError represents a rate limiting signal from the remote source
// that outlasted the client's retries.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// Source fetches feature collections from remote locations.
type Source interface {
	Fetch(ctx context.Context, rawURL string) (*Collection, error)
}

// HTTPClient implements Source over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	maxBytes   int64
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewHTTPClient creates a client with the given request timeout and
// payload limit. Non-positive values fall back to defaults.
func NewHTTPClient(timeout time.Duration, maxBytes int64, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Fetch downloads and decodes a FeatureCollection. Responses asking the
// client to back off (429, 503) are retried after their Retry-After delay.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (*Collection, error) {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if !endpoint.IsAbs() || (endpoint.Scheme != "http" && endpoint.Scheme != "https") {
		return nil, fmt.Errorf("source url must be an absolute http(s) url")
	}

	for attempt := 1; ; attempt++ {
		data, wait, err := c.fetchOnce(ctx, endpoint.String())
		if err == nil {
			return Decode(data)
		}
		var limited TooManyRequestsError
		if !errors.As(err, &limited) || attempt == maxAttempts {
			return nil, err
		}
		c.logger.Warn("feature source rate limited",
			slog.String("url", endpoint.Redacted()),
			slog.Duration("retry_after", wait),
			slog.Int("attempt", attempt),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *HTTPClient) fetchOnce(ctx context.Context, endpoint string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := c.readBody(resp.Body)
		return body, 0, err
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, wait, TooManyRequestsError{RetryAfter: wait}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("feature source request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, 0, fmt.Errorf("feature source error: %s", resp.Status)
	}
}

func (c *HTTPClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("more than %d bytes: %w", c.maxBytes, ErrPayloadTooLarge)
	}
	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	wait := defaultRetryAfter
	if header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			wait = time.Duration(seconds) * time.Second
		} else if t, err := http.ParseTime(header); err == nil {
			wait = time.Until(t)
		}
	}
	if wait < 0 {
		wait = 0
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
