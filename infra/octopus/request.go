package octopus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/octowatt/core/failure"
)

// APIError is a non-success HTTP answer.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("octopus api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the status is worth repeating.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// page is the envelope of every list endpoint.
type page[R any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []R     `json:"results"`
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.account.APIKey != "" {
		req.SetBasicAuth(c.account.APIKey, "")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: body}
	}
	return body, nil
}

// doWithRetry repeats retryable failures with jittered exponential backoff.
// Network errors are retried too; a cancelled context is not.
func (c *Client) doWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			if backoff > 0 {
				wait = backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			}
			c.log.Debugw("retrying request", map[string]any{"attempt": attempt, "backoff": wait.String(), "path": path})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get fetches path and decodes the body into result. Transport problems map
// to failure.KindTransport and undecodable bodies to failure.KindMalformedPage.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, path, query)
	if err != nil {
		return failure.Transport(op, err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return failure.Malformed(op, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

func windowQuery(from, to time.Time, pageSize int) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("period_from", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		q.Set("period_to", to.UTC().Format(time.RFC3339))
	}
	if pageSize > 0 {
		q.Set("page_size", fmt.Sprint(pageSize))
	}
	return q
}

func parseTime(op, field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, failure.Malformed(op, fmt.Errorf("%s %q: %w", field, v, err))
	}
	return t.UTC(), nil
}
