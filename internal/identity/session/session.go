// Package session owns the answer to "who is the current user and what can
// they broadly do." It is the single source of truth for identity, role set,
// and per-team authority levels, and the only writer of the persisted
// credential. One Session exists per running app; collaborators receive it by
// reference, never through a global lookup.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"trailhead/internal/identity/client"
	"trailhead/internal/identity/credential"
	"trailhead/internal/identity/models"
	"trailhead/internal/identity/session/metrics"
	"trailhead/internal/sentinel"
)

// AuthAPI is the backend collaborator for authentication operations.
type AuthAPI interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.AuthResult, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResult, error)
	Me(ctx context.Context, token string) (*client.AuthResult, error)
	Logout(ctx context.Context, token string) error
}

// Invalidator wipes permission verdicts that may be stale after an identity
// change. Login and logout both trigger it.
type Invalidator interface {
	Clear()
}

// Session holds the current user identity, role set, and lifecycle flags.
//
// Lifecycle: unauthenticated -> initializing -> resolved. The initialized flag
// latches true exactly once, after the first hydration attempt settles, and
// never resets - logout returns the session to unauthenticated but keeps it
// initialized.
type Session struct {
	api         AuthAPI
	creds       credential.Store
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	initGroup singleflight.Group
	version   atomic.Uint64

	mu          sync.RWMutex
	token       string
	identity    *models.Identity
	roles       models.RoleSet
	memberships []models.TeamMembership
	initialized bool
	loading     bool
	lastErr     string
}

// Option configures the Session.
type Option func(*Session)

// WithLogger sets the logger for the session.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics sets the metrics collector for the session.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithInvalidator sets the permission cache invalidator.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Session) {
		s.invalidator = inv
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session with required dependencies.
// Panics if required dependencies are nil - fail fast at startup.
func New(api AuthAPI, creds credential.Store, opts ...Option) *Session {
	if api == nil {
		panic("session.New: auth API is required")
	}
	if creds == nil {
		panic("session.New: credential store is required")
	}

	s := &Session{
		api:   api,
		creds: creds,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize hydrates the session from the persisted credential. Failures are
// swallowed: an unauthenticated visitor is a normal state, not an exceptional
// one. Concurrent calls collapse into a single in-flight identity fetch, and
// every caller returns only after the shared attempt has settled.
func (s *Session) Initialize(ctx context.Context) {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return
	}

	s.initGroup.Do("initialize", func() (any, error) {
		s.hydrate(ctx)
		return nil, nil
	})
}

func (s *Session) hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	outcome := s.runHydration(ctx)

	s.mu.Lock()
	s.loading = false
	s.initialized = true
	s.mu.Unlock()
	s.version.Add(1)

	if s.metrics != nil {
		s.metrics.Hydrations.WithLabelValues(outcome).Inc()
	}
}

// runHydration resolves the persisted credential to an identity, or purges it.
// Returns a metrics outcome label.
func (s *Session) runHydration(ctx context.Context) string {
	token, err := s.creds.Load()
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to read persisted credential", "error", err)
		}
		return "no_credential"
	}

	// A provably expired token is purged without a network round-trip.
	if credential.Expired(token, s.now()) {
		s.purgeCredential(ctx)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "purged expired credential")
		}
		return "expired"
	}

	result, err := s.api.Me(ctx, token)
	if err != nil {
		// No stale identity survives a failed hydration: the credential is
		// purged in the same attempt, whatever the failure mode.
		s.purgeCredential(ctx)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "identity hydration failed", "error", err)
		}
		return "rejected"
	}

	s.adopt(result)
	return "authenticated"
}

// Login authenticates with the backend. On success the session adopts the new
// identity and persists the credential. On failure the prior session state is
// left untouched and the error surfaces via LastError, never as a panic or a
// returned error.
func (s *Session) Login(ctx context.Context, email, password string) bool {
	s.setLoading(true)

	result, err := s.api.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.finishWithError(loginErrorMessage(err))
		if s.metrics != nil {
			s.metrics.Logins.WithLabelValues("failure").Inc()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "login failed", "error", err)
		}
		return false
	}

	s.adopt(result)
	s.persistCredential(ctx, result.AccessToken)
	s.clearPermissions()
	s.setLoading(false)
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues("success").Inc()
	}
	return true
}

// Register creates an account and logs the new user in. Same contract as Login.
func (s *Session) Register(ctx context.Context, req client.RegisterRequest) bool {
	s.setLoading(true)

	result, err := s.api.Register(ctx, req)
	if err != nil {
		s.finishWithError(loginErrorMessage(err))
		if s.metrics != nil {
			s.metrics.Registrations.WithLabelValues("failure").Inc()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "registration failed", "error", err)
		}
		return false
	}

	s.adopt(result)
	s.persistCredential(ctx, result.AccessToken)
	s.clearPermissions()
	s.setLoading(false)
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues("success").Inc()
	}
	return true
}

// Logout notifies the backend best-effort, then unconditionally purges the
// credential, identity, roles, and the permission cache.
func (s *Session) Logout(ctx context.Context) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != "" {
		if err := s.api.Logout(ctx, token); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "logout notification failed", "error", err)
		}
	}

	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.roles = nil
	s.memberships = nil
	s.lastErr = ""
	s.mu.Unlock()
	s.version.Add(1)

	s.purgeCredential(ctx)
	s.clearPermissions()
	if s.metrics != nil {
		s.metrics.Logouts.Inc()
	}
}

// IsAuthenticated reports whether a confirmed identity is present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Initialized reports whether the first hydration attempt has settled.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Loading reports whether a hydration, login, or registration is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the user-facing message of the last failed login or
// registration, or empty when the last attempt succeeded.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Identity returns a copy of the current identity, or nil when unauthenticated.
func (s *Session) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Token returns the current bearer credential, or empty when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Version increments on every identity change. Guard evaluations compare it
// before and after awaited permission checks to discard stale resolutions.
func (s *Session) Version() uint64 {
	return s.version.Load()
}

// HasRole is a pure membership test against the global role set.
func (s *Session) HasRole(tag models.RoleTag) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.Has(tag)
}

// IsAdmin reports whether the user carries the admin tag.
func (s *Session) IsAdmin() bool {
	return s.HasRole(models.RoleAdmin)
}

// IsGuide reports guide capability. master_guide is a superset of guide, not a
// disjoint tag, so either tag qualifies.
func (s *Session) IsGuide() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.Has(models.RoleGuide) || s.roles.Has(models.RoleMasterGuide)
}

// IsMasterGuide reports whether the user carries the master_guide tag.
func (s *Session) IsMasterGuide() bool {
	return s.HasRole(models.RoleMasterGuide)
}

// IsExplorer reports whether the user carries the explorer tag.
func (s *Session) IsExplorer() bool {
	return s.HasRole(models.RoleExplorer)
}

// RoleLevelInTeam looks up the caller's membership level for the team.
// The raw level is returned; callers apply the lower-is-more-authority
// comparison explicitly.
func (s *Session) RoleLevelInTeam(teamID int64) (models.RoleLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.TeamID == teamID {
			return m.Level, true
		}
	}
	return 0, false
}

// HasRoleLevel reports whether some team membership carries at least the
// required authority (numerically <= required), or the caller is admin.
func (s *Session) HasRoleLevel(required models.RoleLevel) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roles.Has(models.RoleAdmin) {
		return true
	}
	for _, m := range s.memberships {
		if m.Level.AtLeastAsSenior(required) {
			return true
		}
	}
	return false
}

func (s *Session) adopt(result *client.AuthResult) {
	s.mu.Lock()
	s.token = result.AccessToken
	identity := result.Identity
	s.identity = &identity
	s.roles = result.Roles
	s.memberships = result.Memberships
	s.lastErr = ""
	// A completed auth flow settles the session; a later Initialize must not
	// re-hydrate over a fresher identity.
	s.initialized = true
	s.mu.Unlock()
	s.version.Add(1)
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	if v {
		s.lastErr = ""
	}
	s.mu.Unlock()
}

func (s *Session) finishWithError(msg string) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *Session) persistCredential(ctx context.Context, token string) {
	if err := s.creds.Save(token); err != nil && s.logger != nil {
		// The in-memory session is still valid; only persistence across
		// restarts is lost.
		s.logger.ErrorContext(ctx, "failed to persist credential", "error", err)
	}
}

func (s *Session) purgeCredential(ctx context.Context) {
	if err := s.creds.Clear(); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to purge credential", "error", err)
	}
}

func (s *Session) clearPermissions() {
	if s.invalidator != nil {
		s.invalidator.Clear()
	}
}

// loginErrorMessage maps dependency errors to a user-facing message.
// Authorization rejections surface the server's wording; transport faults get
// a generic retryable message.
func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrUnauthorized), errors.Is(err, sentinel.ErrBadRequest):
		return err.Error()
	default:
		return "service unavailable, please try again"
	}
}
