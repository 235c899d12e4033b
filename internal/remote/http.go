package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aryklein/sheetsync/internal/common"
)

// TokenFunc returns the current bearer credential. It is invoked at the start
// of every request, so a token rotated mid-cycle is honored on the next call.
type TokenFunc func() string

// HTTPClient implements Client over the REST record API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	token   TokenFunc

	// retries on transient failures (network errors, 5xx, 429)
	maxRetries uint64
	retryBase  time.Duration
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// NewHTTPClient returns a Client for the record API rooted at baseURL.
func NewHTTPClient(baseURL string, token TokenFunc, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		hc:         &http.Client{Timeout: 15 * time.Second},
		token:      token,
		maxRetries: 2,
		retryBase:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/records/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) Create(ctx context.Context, rec *Record) error {
	return c.do(ctx, http.MethodPost, "/records", rec, nil)
}

func (c *HTTPClient) Update(ctx context.Context, rec *Record) error {
	return c.do(ctx, http.MethodPut, "/records/"+url.PathEscape(rec.ID), rec, nil)
}

func (c *HTTPClient) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	q := url.Values{"owner": []string{ownerID}}
	var recs []Record
	if err := c.do(ctx, http.MethodGet, "/records?"+q.Encode(), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// do performs one API call with bounded fibonacci backoff on transient
// failures. Authentication and not-found responses are terminal.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.retryBase))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		// Re-read the credential on every attempt, not once per cycle.
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return common.ErrUnauthenticated
		case resp.StatusCode == http.StatusNotFound:
			return common.ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("server error: %s", resp.Status))
		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("request rejected: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
