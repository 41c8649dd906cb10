// Package aggregator provides a client for the metrics aggregation server,
// the external service that collects per-host resource readings.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CoffeeShop-Development/watchtower/internal/errors"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
)

const maxResponseBytes = 16 << 20 // cap on upstream payloads we will buffer

// Client talks to the metrics aggregation server. It is stateless: every
// call is a single HTTP request bounded by the configured timeout and the
// caller's context, with no internal retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient validates the configuration and returns a ready client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("aggregator base URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid aggregator base URL %q", cfg.BaseURL)
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchLatest returns the most recent snapshot for every host known to the
// aggregation server.
func (c *Client) FetchLatest(ctx context.Context) (map[string]models.MetricSnapshot, error) {
	var latest map[string]models.MetricSnapshot
	if err := c.getJSON(ctx, "fetch_latest", "/latest", nil, &latest); err != nil {
		return nil, err
	}
	if latest == nil {
		latest = make(map[string]models.MetricSnapshot)
	}
	// The aggregation server keys the map by hostname; backfill the field
	// for payloads that omit it inside the value.
	for hostname, snapshot := range latest {
		if snapshot.Hostname == "" {
			snapshot.Hostname = hostname
			latest[hostname] = snapshot
		}
	}
	return latest, nil
}

// QueryRange forwards a historical query and returns the raw response body.
// The response shape is the aggregation server's own; the API surface
// passes it through untouched.
func (c *Client) QueryRange(ctx context.Context, hostname string, hours int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("hours", strconv.Itoa(hours))
	if hostname != "" {
		params.Set("hostname", hostname)
	}

	body, err := c.get(ctx, "query_range", "/query", params)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.WrapMalformedError("query_range", c.baseURL+"/query", fmt.Errorf("response is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

// Health checks the aggregation server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "health", "/health", nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	body, err := c.get(ctx, op, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.WrapMalformedError(op, c.baseURL+path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewMonitorError(errors.ErrorTypeInternal, op, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, errors.WrapTimeoutError(op, endpoint, err)
		}
		return nil, errors.WrapConnectionError(op, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WrapConnectionError(op, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 256))
		return nil, errors.WrapAPIError(op, endpoint, apiErr, resp.StatusCode)
	}

	return body, nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; e = unwrap(e) {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
