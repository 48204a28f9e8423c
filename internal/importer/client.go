package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mampersat/ratewings2025/internal/api"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api returned %d", e.Status)
	}
	return fmt.Sprintf("api returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls the ratewings HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithPageSize sets the page size used to list locations. Values outside
// 1..api.MaxPageSize are ignored.
func WithPageSize(n int) ClientOption {
	return func(cl *Client) {
		if n > 0 && n <= api.MaxPageSize {
			cl.pageSize = n
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		pageSize: api.MaxPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListLocations pages through GET /locations/ until a short page is returned.
func (c *Client) ListLocations(ctx context.Context) ([]api.LocationResponse, error) {
	var all []api.LocationResponse
	for skip := 0; ; skip += c.pageSize {
		q := url.Values{}
		q.Set("skip", strconv.Itoa(skip))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var page []api.LocationResponse
		if err := c.do(ctx, http.MethodGet, "/locations/?"+q.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list locations at skip=%d: %w", skip, err)
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			return all, nil
		}
	}
}

// CreateLocation calls POST /locations/.
func (c *Client) CreateLocation(ctx context.Context, req api.CreateLocationRequest) (api.LocationResponse, error) {
	var out api.LocationResponse
	if err := c.do(ctx, http.MethodPost, "/locations/", req, &out); err != nil {
		return out, fmt.Errorf("failed to create location %q: %w", req.Name, err)
	}
	return out, nil
}

// CreateReview calls POST /reviews/.
func (c *Client) CreateReview(ctx context.Context, req api.CreateReviewRequest) (api.ReviewResponse, error) {
	var out api.ReviewResponse
	if err := c.do(ctx, http.MethodPost, "/reviews/", req, &out); err != nil {
		return out, fmt.Errorf("failed to create review: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env api.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
