package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"freezefit/pkg/cache"
)

const (
	defaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 30 * time.Second
	apiPrefix       = "/api/v1/"
)

// APIError is a failed envelope returned by the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta *Meta `json:"meta"`
}

type Meta struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// HttpClient speaks the envelope protocol. Successful GET responses are kept
// in a flat TTL cache keyed by path; every write drops the cached entries of
// the collection it touched.
type HttpClient struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.RWMutex
	token string
	cache *cache.TTLMap
	ttl   time.Duration
}

func NewHttpClient(baseURL string) *HttpClient {
	return &HttpClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		cache: cache.NewTTLMap(time.Minute),
		ttl:   DefaultCacheTTL,
	}
}

// SetToken sets the bearer token sent with every request. Cached responses
// belong to the previous identity and are dropped.
func (c *HttpClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.Invalidate(context.Background(), "")
}

func (c *HttpClient) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Invalidate drops every cached response whose path starts with prefix.
func (c *HttpClient) Invalidate(ctx context.Context, prefix string) {
	_ = c.cache.DeletePrefix(ctx, prefix)
}

func (c *HttpClient) Close() {
	c.cache.Stop()
}

// Get decodes the data of the response into out. It returns the pagination
// meta when the endpoint is paginated.
func (c *HttpClient) Get(ctx context.Context, path string, out any) (*Meta, error) {
	if c.ttl > 0 {
		if raw, ok := c.cache.Get(ctx, path); ok {
			return decode(http.StatusOK, raw, out)
		}
	}

	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	meta, err := decode(status, raw, out)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		_ = c.cache.Set(ctx, path, raw, c.ttl)
	}
	return meta, nil
}

func (c *HttpClient) Post(ctx context.Context, path string, body, out any, invalidate ...string) error {
	return c.write(ctx, http.MethodPost, path, body, out, invalidate)
}

func (c *HttpClient) Put(ctx context.Context, path string, body, out any, invalidate ...string) error {
	return c.write(ctx, http.MethodPut, path, body, out, invalidate)
}

func (c *HttpClient) Patch(ctx context.Context, path string, body, out any, invalidate ...string) error {
	return c.write(ctx, http.MethodPatch, path, body, out, invalidate)
}

func (c *HttpClient) Delete(ctx context.Context, path string, invalidate ...string) error {
	return c.write(ctx, http.MethodDelete, path, nil, nil, invalidate)
}

func (c *HttpClient) write(ctx context.Context, method, path string, body, out any, invalidate []string) error {
	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if _, err := decode(status, raw, out); err != nil {
		return err
	}

	c.Invalidate(ctx, collection(path))
	for _, prefix := range invalidate {
		c.Invalidate(ctx, prefix)
	}
	return nil
}

func (c *HttpClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func decode(status int, raw []byte, out any) (*Meta, error) {
	if status == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: status, Code: "INVALID_RESPONSE", Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if status >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: status, Code: "UNKNOWN", Message: http.StatusText(status)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return nil, apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return env.Meta, nil
}

// collection returns the "/api/v1/<resource>" prefix of path.
func collection(path string) string {
	rest, ok := strings.CutPrefix(path, apiPrefix)
	if !ok {
		return path
	}
	resource, _, _ := strings.Cut(rest, "/")
	resource, _, _ = strings.Cut(resource, "?")
	return apiPrefix + resource
}

func (c *HttpClient) WaitForHealthy(ctx context.Context, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		status, _, err := c.do(ctx, http.MethodGet, "/health", nil)
		if err == nil && status == http.StatusOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return fmt.Errorf("service did not become healthy within %v", maxWait)
}
