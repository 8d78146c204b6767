package fetch

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUserAgent    = "Constituant/1.0 (Civic Platform; +https://constituant.fr)"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 3

	maxBodySize  = 10 << 20
	maxErrorBody = 1 << 10
)

type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

type RequestOptions struct {
	Accept  string
	Delay   time.Duration
	Timeout time.Duration
	Headers map[string]string
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError is returned for any HTTP status >= 400. Body holds the start
// of the error payload.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(opts Options) *Client {
	maxRedirects := cmp.Or(opts.MaxRedirects, DefaultMaxRedirects)

	return &Client{
		httpClient: &http.Client{
			Timeout: cmp.Or(opts.Timeout, DefaultTimeout),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: cmp.Or(opts.UserAgent, DefaultUserAgent),
	}
}

// Get waits opts.Delay, then issues the request. The delay is a plain blocking wait.
func (c *Client) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, opts)
}

// Post sends body as JSON unless opts.Headers sets another Content-Type.
func (c *Client) Post(ctx context.Context, url string, body []byte, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, body, opts)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, opts RequestOptions) (*Response, error) {
	if err := Sleep(ctx, opts.Delay); err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", cmp.Or(opts.Accept, "application/json"))
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	slog.Debug("Fetched URL", "method", method, "url", url, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
