// Package guard decides, for a navigation target, whether to render it,
// bounce the visitor to login, or bounce to the unauthorized page. Checks run
// cheapest first: role membership and level comparisons are pure local reads
// and reject obviously-unauthorized users before any permission round-trip is
// paid for.
package guard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trailhead/internal/guard/metrics"
	"trailhead/internal/identity/models"
	"trailhead/internal/permission"
)

// SessionState is the read surface the guard needs from the session.
type SessionState interface {
	Initialized() bool
	Loading() bool
	IsAuthenticated() bool
	IsAdmin() bool
	IsGuide() bool
	IsMasterGuide() bool
	IsExplorer() bool
	HasRole(tag models.RoleTag) bool
	HasRoleLevel(required models.RoleLevel) bool

	// Version increments on every identity change; evaluations use it to
	// discard permission verdicts resolved against superseded inputs.
	Version() uint64
}

// PermissionChecker resolves a fine-grained permission verdict. Implementations
// must fail closed and never block forever on their own account.
type PermissionChecker interface {
	Check(ctx context.Context, op permission.Operation, resourceID, teamID *int64) bool
}

// Evaluator composes session state with authorization rules to produce
// decisions. It holds no per-request state; one instance serves the whole app.
type Evaluator struct {
	session SessionState
	checker PermissionChecker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger for the evaluator.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithMetrics sets the metrics collector for the evaluator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithTracer injects a custom tracer. Useful for testing or a pre-configured provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Evaluator) {
		e.tracer = t
	}
}

// New creates an evaluator with required dependencies.
// Panics if required dependencies are nil - fail fast at startup.
func New(session SessionState, checker PermissionChecker, opts ...Option) *Evaluator {
	if session == nil {
		panic("guard.New: session is required")
	}
	if checker == nil {
		panic("guard.New: permission checker is required")
	}

	e := &Evaluator{
		session: session,
		checker: checker,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("trailhead/guard")
	}
	return e
}

// Evaluate runs the full route-guard rule chain in fixed order, short-circuiting
// on the first applicable denial:
//
//  1. auth not settled            -> Pending
//  2. not authenticated           -> DeniedUnauthenticated
//  3. required roles unsatisfied  -> DeniedForbidden (admin passes any list)
//  4. required level unsatisfied  -> DeniedForbidden
//  5. required permission denied  -> DeniedForbidden (admin skips the round-trip)
//  6. otherwise                   -> Allowed
func (e *Evaluator) Evaluate(ctx context.Context, rule Rule, params Params) Decision {
	ctx, span := e.tracer.Start(ctx, "guard.evaluate")
	start := time.Now()

	d := e.evaluate(ctx, rule, params)

	span.SetAttributes(
		attribute.String("guard.state", string(d.State)),
		attribute.String("guard.reason", string(d.Reason)),
	)
	span.End()
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(d.State)).Inc()
		e.metrics.EvaluateDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}
	return d
}

func (e *Evaluator) evaluate(ctx context.Context, rule Rule, params Params) Decision {
	// Step 1: never evaluate a rule against an unsettled session. Protected
	// content must not flash, and a redirect now could be wrong in a moment.
	if !e.session.Initialized() || e.session.Loading() {
		return pending(ReasonInitializing)
	}

	// Step 2: authentication.
	if !e.session.IsAuthenticated() {
		return deniedUnauthenticated()
	}

	// Step 3: role membership, any-of. Admin is a universal override.
	if len(rule.RequiredRoles) > 0 && !e.anyRoleSatisfied(rule.RequiredRoles) {
		return deniedForbidden(ReasonMissingRole)
	}

	// Step 4: team authority level.
	if rule.RequiredLevel != nil && !e.session.HasRoleLevel(*rule.RequiredLevel) {
		return deniedForbidden(ReasonInsufficientLevel)
	}

	// Step 5: fine-grained permission, the only check that costs a round-trip.
	if rule.RequiredPermission != "" {
		return e.checkPermission(ctx, rule, params)
	}

	return allowed()
}

func (e *Evaluator) anyRoleSatisfied(required []models.RoleTag) bool {
	if e.session.IsAdmin() {
		return true
	}
	for _, tag := range required {
		if e.roleSatisfied(tag) {
			return true
		}
	}
	return false
}

// roleSatisfied applies the session predicates rather than raw set membership,
// so master_guide satisfies a guide requirement.
func (e *Evaluator) roleSatisfied(tag models.RoleTag) bool {
	switch tag {
	case models.RoleGuide:
		return e.session.IsGuide()
	case models.RoleMasterGuide:
		return e.session.IsMasterGuide()
	case models.RoleAdmin:
		return e.session.IsAdmin()
	case models.RoleExplorer:
		return e.session.IsExplorer()
	default:
		return e.session.HasRole(tag)
	}
}

func (e *Evaluator) checkPermission(ctx context.Context, rule Rule, params Params) Decision {
	// Admin short-circuits to allow with zero network calls.
	if e.session.IsAdmin() {
		return allowed()
	}

	resourceID, ok := resolveParam(params, rule.ResourceParam)
	if !ok {
		return e.denyMalformed(ctx, rule, rule.ResourceParam)
	}
	teamID, ok := resolveParam(params, rule.TeamParam)
	if !ok {
		return e.denyMalformed(ctx, rule, rule.TeamParam)
	}

	// The verdict below may take arbitrarily long. If the identity changed
	// while it was in flight, it answers a question about a user that no
	// longer exists; report Pending so the caller re-evaluates against the
	// current inputs instead of publishing a stale outcome.
	versionBefore := e.session.Version()
	granted := e.checker.Check(ctx, rule.RequiredPermission, resourceID, teamID)
	if e.session.Version() != versionBefore {
		return pending(ReasonStaleEvaluation)
	}

	if !granted {
		return deniedForbidden(ReasonPermissionDenied)
	}
	return allowed()
}

func (e *Evaluator) denyMalformed(ctx context.Context, rule Rule, param string) Decision {
	if e.logger != nil {
		e.logger.WarnContext(ctx, "permission check missing route parameter",
			"operation", string(rule.RequiredPermission),
			"param", param,
		)
	}
	return deniedForbidden(ReasonMissingRouteParam)
}

// resolveParam extracts an int64 route parameter. An unnamed source resolves
// to nil (unscoped check); a named but absent or malformed value fails the
// resolution - validation errors are denials, never panics.
func resolveParam(params Params, name string) (*int64, bool) {
	if name == "" {
		return nil, true
	}
	raw, ok := params[name]
	if !ok || raw == "" {
		return nil, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
