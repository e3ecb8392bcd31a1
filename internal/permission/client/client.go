// Package client is the typed gateway to backend permission decisions. It
// shapes requests and memoizes verdicts; policy lives server-side. Every
// operation fails closed: transport faults, error statuses, and malformed
// payloads all read as denial, never as an error escaping this boundary.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trailhead/internal/permission"
	"trailhead/internal/permission/cache"
	"trailhead/internal/permission/metrics"
)

// TokenSource supplies the current bearer credential. The session satisfies
// this; the client never persists or mutates the token.
type TokenSource interface {
	Token() string
}

// PermissionRecord is one resolvable permission for the current identity.
type PermissionRecord struct {
	Operation   string `json:"operation"`
	TeamID      *int64 `json:"team_id"`
	Description string `json:"description"`
}

// TeamPermissionRow is a team's override entry for one operation. Level 1
// (master guide) is implicitly always-allowed and never appears here.
type TeamPermissionRow struct {
	Level2      bool   `json:"level_2"`
	Level3      bool   `json:"level_3"`
	Level4      bool   `json:"level_4"`
	Description string `json:"description"`
}

// Client calls the backend /permissions endpoints, consulting and populating
// the shared verdict cache.
type Client struct {
	baseURL    string
	tokens     TokenSource
	cache      *cache.Cache
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer injects a custom tracer. Useful for testing or a pre-configured provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a permission client with required dependencies.
// Panics if required dependencies are nil - fail fast at startup.
func New(baseURL string, tokens TokenSource, verdicts *cache.Cache, timeout time.Duration, opts ...Option) *Client {
	if tokens == nil {
		panic("permission client.New: token source is required")
	}
	if verdicts == nil {
		panic("permission client.New: verdict cache is required")
	}

	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		cache:   verdicts,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("trailhead/permission")
	}
	return c
}

type checkRequest struct {
	Operation  string `json:"operation"`
	ResourceID *int64 `json:"resource_id"`
	TeamID     *int64 `json:"team_id"`
}

type checkResponse struct {
	HasPermission bool `json:"has_permission"`
}

// Check resolves a fine-grained permission verdict, serving repeats from the
// cache. Denial is the safe default: any failure reads as false.
func (c *Client) Check(ctx context.Context, op permission.Operation, resourceID, teamID *int64) bool {
	if !op.Registered() {
		// An unregistered operation is a programming error upstream; deny and
		// log rather than asking the backend about a name it cannot know.
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "permission check for unregistered operation", "operation", string(op))
		}
		return false
	}

	if allowed, ok := c.cache.Get(op, resourceID, teamID); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
			c.metrics.Checks.WithLabelValues("cache", outcomeLabel(allowed)).Inc()
		}
		return allowed
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	ctx, span := c.tracer.Start(ctx, "permission.check", trace.WithAttributes(
		attribute.String("permission.operation", string(op)),
	))
	start := time.Now()

	allowed, err := c.checkRemote(ctx, op, resourceID, teamID)

	if c.metrics != nil {
		c.metrics.CheckDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		if c.logger != nil {
			c.logger.WarnContext(ctx, "permission check failed closed",
				"operation", string(op),
				"error", err,
			)
		}
		if c.metrics != nil {
			c.metrics.Checks.WithLabelValues("backend", "error").Inc()
		}
		// Fail closed, and do not cache: the next check should retry the
		// backend instead of replaying a transport fault as a denial.
		return false
	}
	span.SetAttributes(attribute.Bool("permission.allowed", allowed))
	span.End()

	c.cache.Set(op, resourceID, teamID, allowed)
	if c.metrics != nil {
		c.metrics.Checks.WithLabelValues("backend", outcomeLabel(allowed)).Inc()
	}
	return allowed
}

func (c *Client) checkRemote(ctx context.Context, op permission.Operation, resourceID, teamID *int64) (bool, error) {
	var decoded checkResponse
	err := c.postJSON(ctx, "/permissions/check", checkRequest{
		Operation:  string(op),
		ResourceID: resourceID,
		TeamID:     teamID,
	}, &decoded)
	if err != nil {
		return false, err
	}
	return decoded.HasPermission, nil
}

// UserPermissions returns the full permission set resolvable for the current
// identity. Empty on any failure.
func (c *Client) UserPermissions(ctx context.Context) []PermissionRecord {
	var decoded struct {
		Permissions []PermissionRecord `json:"permissions"`
	}
	if err := c.getJSON(ctx, "/permissions/user", &decoded); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to list user permissions", "error", err)
		}
		return nil
	}
	return decoded.Permissions
}

// RoleConfigurations returns the per-team role display names keyed by level.
// Empty on any failure.
func (c *Client) RoleConfigurations(ctx context.Context) map[string]string {
	var decoded struct {
		RoleConfigurations map[string]string `json:"role_configurations"`
	}
	if err := c.getJSON(ctx, "/permissions/role-configurations", &decoded); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to list role configurations", "error", err)
		}
		return map[string]string{}
	}
	if decoded.RoleConfigurations == nil {
		return map[string]string{}
	}
	return decoded.RoleConfigurations
}

// TeamPermissions returns the team's override table keyed by operation.
// Empty on any failure.
func (c *Client) TeamPermissions(ctx context.Context, teamID int64) map[string]TeamPermissionRow {
	var decoded struct {
		Permissions map[string]TeamPermissionRow `json:"permissions"`
	}
	path := fmt.Sprintf("/permissions/team/%d/permissions", teamID)
	if err := c.getJSON(ctx, path, &decoded); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to fetch team permissions", "team_id", teamID, "error", err)
		}
		return map[string]TeamPermissionRow{}
	}
	if decoded.Permissions == nil {
		return map[string]TeamPermissionRow{}
	}
	return decoded.Permissions
}

// UpdateTeamPermissions replaces the team's override table. The verdict cache
// is cleared on success so no pre-update answer survives the write.
func (c *Client) UpdateTeamPermissions(ctx context.Context, teamID int64, table map[string]TeamPermissionRow) bool {
	path := fmt.Sprintf("/permissions/team/%d/permissions", teamID)
	body := struct {
		Permissions map[string]TeamPermissionRow `json:"permissions"`
	}{Permissions: table}

	if err := c.postJSON(ctx, path, body, nil); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to update team permissions", "team_id", teamID, "error", err)
		}
		return false
	}

	c.invalidate()
	return true
}

// SyncTeamPermissions asks the backend to re-derive the team's permission
// table. The verdict cache is cleared on success.
func (c *Client) SyncTeamPermissions(ctx context.Context, teamID int64) bool {
	body := struct {
		TeamID int64 `json:"team_id"`
	}{TeamID: teamID}

	if err := c.postJSON(ctx, "/permissions/sync-permissions", body, nil); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "failed to sync team permissions", "team_id", teamID, "error", err)
		}
		return false
	}

	c.invalidate()
	return true
}

func (c *Client) invalidate() {
	c.cache.Clear()
	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func outcomeLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
