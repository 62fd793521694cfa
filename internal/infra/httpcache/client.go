package httpcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; daily-movers/1.0)"

// Client is a read-through HTTP fetcher: disk cache in front, per-host
// throttle and retry with backoff behind. All ingestion traffic goes
// through it.
type Client struct {
	HTTP       *http.Client
	Cache      *DiskCache
	Throttle   *HostThrottle
	Log        zerolog.Logger
	MaxRetries int
	Backoff    time.Duration
	UserAgent  string
}

func NewClient(cache *DiskCache, throttle *HostThrottle, log zerolog.Logger) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 20 * time.Second},
		Cache:      cache,
		Throttle:   throttle,
		Log:        log,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}
}

// Get fetches the URL with the given query parameters, serving from cache
// when a fresh entry exists. Only successful responses are cached.
func (c *Client) Get(ctx context.Context, rawURL string, params map[string]string) ([]byte, error) {
	fingerprint := Fingerprint(http.MethodGet, rawURL, params)
	if cached, ok := c.Cache.Get(fingerprint); ok {
		return cached.Body, nil
	}

	full, err := withParams(rawURL, params)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	resp, err := c.fetch(ctx, full)
	if err != nil {
		return nil, err
	}
	c.Cache.Put(fingerprint, resp)
	return resp.Body, nil
}

func (c *Client) fetch(ctx context.Context, fullURL string) (Entry, error) {
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return Entry{}, fmt.Errorf("parse url: %w", err)
	}

	if c.Throttle != nil {
		release, err := c.Throttle.Acquire(ctx, parsed.Host)
		if err != nil {
			return Entry{}, fmt.Errorf("throttle %s: %w", parsed.Host, err)
		}
		defer release()
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelay(attempt, lastErr)); err != nil {
				return Entry{}, err
			}
		}
		resp, err := c.doOnce(ctx, fullURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.Log.Debug().Err(err).Str("url", fullURL).Int("attempt", attempt+1).Msg("retrying request")
	}
	return Entry{}, lastErr
}

func (c *Client) doOnce(ctx context.Context, fullURL string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Entry{}, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.5")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Entry{}, &statusError{status: 0, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Entry{}, &statusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, &statusError{status: 0, cause: err}
	}
	return Entry{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*statusError); ok && se.retryAfter > 0 {
		return se.retryAfter
	}
	return c.Backoff * time.Duration(1<<(attempt-1))
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

type statusError struct {
	status     int
	retryAfter time.Duration
	cause      error
}

func (e *statusError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("request failed: %v", e.cause)
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (e *statusError) Unwrap() error { return e.cause }

// retryable reports whether a transport failure or status code warrants
// another attempt. Client errors other than timeout and rate limiting do not.
func retryable(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return false
	}
	switch {
	case se.status == 0:
		return true
	case se.status == http.StatusRequestTimeout, se.status == http.StatusTooManyRequests:
		return true
	case se.status >= 500:
		return true
	default:
		return false
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withParams(rawURL string, params map[string]string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
