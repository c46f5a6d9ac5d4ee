package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
)

const defaultUserAgent = "thesync/0.1"

// Response is the backend's response envelope.
type Response struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

// Client talks to the entity backend.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	headers    http.Header
	breaker    *resilience.Breaker
	retry      *resilience.Retry
	middleware *observe.Middleware
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker guards every request with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithRetry sets the retry policy for reads.
func WithRetry(r *resilience.Retry) Option {
	return func(c *Client) { c.retry = r }
}

// WithMiddleware wraps each request in m.
func WithMiddleware(m *observe.Middleware) Option {
	return func(c *Client) { c.middleware = m }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// NewClient builds a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		headers:   make(http.Header),
		retry: resilience.NewRetry(resilience.RetryConfig{
			Jitter:  true,
			RetryIf: Transient,
		}),
		middleware: observe.NopMiddleware(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Breaker returns the client's circuit breaker, or nil.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// List fetches every entity of the given type.
func (c *Client) List(ctx context.Context, entity string) (Response, error) {
	scope := observe.Scope{Entity: entity, Operation: "list"}
	var resp Response
	err := c.middleware.Do(ctx, scope, func(ctx context.Context) error {
		return c.retry.Execute(ctx, func(ctx context.Context) error {
			var err error
			resp, err = c.guarded(ctx, http.MethodGet, "/"+url.PathEscape(entity), nil)
			return err
		})
	})
	return resp, err
}

// Patch sends a partial update for one entity. It is never retried.
func (c *Client) Patch(ctx context.Context, entity, id string, body any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("api: encode body: %w", err)
	}

	scope := observe.Scope{Entity: entity, Operation: "patch", EntityID: id}
	var resp Response
	err = c.middleware.Do(ctx, scope, func(ctx context.Context) error {
		var err error
		resp, err = c.guarded(ctx, http.MethodPatch, "/"+url.PathEscape(entity)+"/"+url.PathEscape(id), payload)
		return err
	})
	return resp, err
}

func (c *Client) guarded(ctx context.Context, method, path string, body []byte) (Response, error) {
	if c.breaker == nil {
		return c.do(ctx, method, path, body)
	}
	var resp Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.do(ctx, method, path, body)
		return err
	})
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (Response, error) {
	reqURL := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return Response{}, fmt.Errorf("api: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		return Response{}, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: read %s %s: %v", ErrNetwork, method, path, err)
	}

	var resp Response
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil && httpResp.StatusCode < 300 {
			return Response{}, &ServerError{
				StatusCode: httpResp.StatusCode,
				Message:    "malformed response body",
			}
		}
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = httpResp.StatusCode
	}

	if httpResp.StatusCode >= 300 || !resp.Success {
		return resp, &ServerError{StatusCode: resp.StatusCode, Message: errorMessage(resp, httpResp.StatusCode)}
	}
	return resp, nil
}

func errorMessage(resp Response, status int) string {
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return msg
	}
	return http.StatusText(status)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("api: base url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url %q: %w", raw, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
