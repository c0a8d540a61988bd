package newsloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept on *Error.
const maxErrorBody = 512

// call makes a JSON request to the Newsloop API.
//
// It handles:
// - Request construction with credentials and headers
// - Client-side rate limiting
// - Retry with backoff for idempotent requests
// - Mapping non-2xx responses to *Error
//
// The raw response body is returned so callers can validate its shape.
func (c *Client) call(ctx context.Context, method, path string, in any) ([]byte, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("newsloop: encode request: %w", err)
		}
	}

	// Only GETs are retried. A delete or login that reached the server
	// must not be replayed.
	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxRetries
	}

	var lastErr error
	backoff := 1 * time.Second

	for i := 0; i < attempts; i++ {
		c.logDebugf("newsloop: %s %s (attempt %d/%d)", method, path, i+1, attempts)

		body, err := c.do(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldRetry(err) || i == attempts-1 {
			break
		}

		c.logDebugf("newsloop: %s %s failed, retrying: %v", method, path, err)
		if !sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}

	return nil, lastErr
}

// do performs a single round trip.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsloop: http request failed: %w", err)
	}
	defer resp.Body.Close()

	c.storeCookies(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("newsloop: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, body)
	}

	return body, nil
}

// newRequest builds a request carrying the session cookies.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("newsloop: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for _, ck := range c.jar.Cookies(c.baseURL) {
		req.AddCookie(ck)
	}
	return req, nil
}

// storeCookies keeps any credentials the server rotates or issues.
func (c *Client) storeCookies(resp *http.Response) {
	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.jar.SetCookies(c.baseURL, cookies)
	}
}

// wait blocks on the rate limiter if one is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("newsloop: rate limiter: %w", err)
	}
	return nil
}

// statusError converts a non-2xx response into *Error.
func statusError(resp *http.Response, body []byte) *Error {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &Error{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       text,
	}
}

// shouldRetry checks if a failed round trip is worth repeating.
func shouldRetry(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
