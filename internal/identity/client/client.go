// Package client implements the HTTP gateway to the marketplace auth backend.
// It shapes requests and maps transport failures to sentinel errors; it holds
// no policy logic of its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trailhead/internal/identity/models"
	"trailhead/internal/sentinel"
)

// Client calls the backend /auth endpoints. The bearer credential is supplied
// per call so the session stays the single owner of credential state.
type Client struct {
	baseURL    string
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

// New creates a new auth client against the given base URL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthResult is the decoded identity payload shared by login, register, and
// the identity fetch.
type AuthResult struct {
	AccessToken string
	Identity    models.Identity
	Roles       models.RoleSet
	Memberships []models.TeamMembership
}

// LoginRequest carries the credentials for a login attempt.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields for account creation. An invitation code,
// when present, upgrades the created account from explorer to guide scope
// server-side; this client treats it as opaque.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	InvitationCode string `json:"invitation_code,omitempty"`
}

// authResponse mirrors the backend auth payload.
type authResponse struct {
	AccessToken string           `json:"access_token"`
	UserID      int64            `json:"user_id"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Email       string           `json:"email"`
	Roles       []string         `json:"roles"`
	Memberships []membershipJSON `json:"team_memberships"`
}

type membershipJSON struct {
	TeamID    int64 `json:"team_id"`
	RoleLevel int   `json:"role_level"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Login exchanges credentials for an identity and bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	return c.postAuth(ctx, "/auth/login", req, "")
}

// Register creates an account and returns the resulting identity and token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	return c.postAuth(ctx, "/auth/register", req, "")
}

// Me fetches the identity bound to the bearer token.
func (c *Client) Me(ctx context.Context, token string) (*AuthResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create identity request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	result, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	// /auth/me carries no token; the caller already holds it.
	result.AccessToken = token
	return result, nil
}

// Logout notifies the backend that the session is over. Best-effort: callers
// purge local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("create logout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: logout", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: logout status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) postAuth(ctx context.Context, path string, body any, token string) (*AuthResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal auth request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*AuthResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read auth response", sentinel.ErrUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Continue to parse.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", sentinel.ErrUnauthorized, serverMessage(body))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: %s", sentinel.ErrBadRequest, serverMessage(body))
	default:
		return nil, fmt.Errorf("%w: auth status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var decoded authResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed auth payload", sentinel.ErrInvalidInput)
	}

	roles, err := models.ParseRoleSet(decoded.Roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}

	memberships := make([]models.TeamMembership, 0, len(decoded.Memberships))
	for _, m := range decoded.Memberships {
		level := models.RoleLevel(m.RoleLevel)
		if !level.Valid() {
			return nil, fmt.Errorf("%w: role level %d out of range", sentinel.ErrInvalidInput, m.RoleLevel)
		}
		memberships = append(memberships, models.TeamMembership{TeamID: m.TeamID, Level: level})
	}

	return &AuthResult{
		AccessToken: decoded.AccessToken,
		Identity: models.Identity{
			UserID:    decoded.UserID,
			FirstName: decoded.FirstName,
			LastName:  decoded.LastName,
			Email:     decoded.Email,
		},
		Roles:       roles,
		Memberships: memberships,
	}, nil
}

func serverMessage(body []byte) string {
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return "request rejected"
}
