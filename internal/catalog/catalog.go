// Package catalog fetches activity and expedition listings. Payloads pass
// through opaquely; authorization decides whether a view renders, not what
// the catalog contains.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trailhead/internal/sentinel"
)

// TokenSource supplies the current bearer credential, empty when anonymous.
type TokenSource interface {
	Token() string
}

// Activity is a catalog entry. Fields the authorization layer does not
// interpret stay raw.
type Activity struct {
	ID      int64           `json:"id"`
	TeamID  *int64          `json:"team_id"`
	Details json.RawMessage `json:"details"`
}

// Expedition is a multi-activity itinerary entry.
type Expedition struct {
	ID      int64           `json:"id"`
	TeamID  *int64          `json:"team_id"`
	Details json.RawMessage `json:"details"`
}

// Client calls the backend catalog endpoints.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a catalog client.
// Panics if the token source is nil - fail fast at startup.
func New(baseURL string, tokens TokenSource, timeout time.Duration, opts ...Option) *Client {
	if tokens == nil {
		panic("catalog.New: token source is required")
	}

	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activities lists the public activity catalog.
func (c *Client) Activities(ctx context.Context) ([]Activity, error) {
	var decoded struct {
		Activities []Activity `json:"activities"`
	}
	if err := c.getJSON(ctx, "/activities", &decoded); err != nil {
		return nil, err
	}
	return decoded.Activities, nil
}

// Activity fetches a single catalog entry.
func (c *Client) Activity(ctx context.Context, id int64) (*Activity, error) {
	var decoded Activity
	if err := c.getJSON(ctx, fmt.Sprintf("/activities/%d", id), &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// MyActivities lists activities run by the authenticated guide.
func (c *Client) MyActivities(ctx context.Context) ([]Activity, error) {
	var decoded struct {
		Activities []Activity `json:"activities"`
	}
	if err := c.getJSON(ctx, "/my-activities", &decoded); err != nil {
		return nil, err
	}
	return decoded.Activities, nil
}

// Expeditions lists the public expedition catalog.
func (c *Client) Expeditions(ctx context.Context) ([]Expedition, error) {
	var decoded struct {
		Expeditions []Expedition `json:"expeditions"`
	}
	if err := c.getJSON(ctx, "/expeditions", &decoded); err != nil {
		return nil, err
	}
	return decoded.Expeditions, nil
}

// Expedition fetches a single itinerary entry.
func (c *Client) Expedition(ctx context.Context, id int64) (*Expedition, error) {
	var decoded Expedition
	if err := c.getJSON(ctx, fmt.Sprintf("/expeditions/%d", id), &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return sentinel.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}
	return nil
}
