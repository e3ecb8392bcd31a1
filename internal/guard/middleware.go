package guard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"trailhead/internal/identity/models"
)

// Hydrator restores persisted credentials before the first evaluation.
// The session satisfies this; repeat calls after the first are no-ops.
type Hydrator interface {
	Initialize(ctx context.Context)
}

const (
	loginPath        = "/login"
	unauthorizedPath = "/unauthorized"
)

// Middleware adapts guard evaluation to chi routes. Each protected route
// declares its rule once; the middleware hydrates the session, evaluates, and
// either passes the request through or redirects.
type Middleware struct {
	evaluator *Evaluator
	hydrator  Hydrator
}

// NewMiddleware creates the route-guard middleware.
// Panics if required dependencies are nil - fail fast at startup.
func NewMiddleware(evaluator *Evaluator, hydrator Hydrator) *Middleware {
	if evaluator == nil {
		panic("guard.NewMiddleware: evaluator is required")
	}
	if hydrator == nil {
		panic("guard.NewMiddleware: hydrator is required")
	}
	return &Middleware{evaluator: evaluator, hydrator: hydrator}
}

// RequireRule guards the wrapped handler with the given rule.
//
// Denials map to redirects: unauthenticated visitors go to the login page
// with the original path preserved for post-login return, forbidden ones to
// the unauthorized page. A pending decision answers 503 with a neutral retry
// hint; it never leaks whether the target would ultimately be allowed.
func (m *Middleware) RequireRule(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.hydrator.Initialize(r.Context())

			d := m.evaluator.Evaluate(r.Context(), rule, routeParams(r))
			switch {
			case d.Allowed():
				next.ServeHTTP(w, r)
			case d.State == StateDeniedUnauthenticated:
				target := loginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
			case d.State == StateDeniedForbidden:
				http.Redirect(w, r, unauthorizedPath, http.StatusSeeOther)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "authorization pending", http.StatusServiceUnavailable)
			}
		})
	}
}

// RequireRoles guards the wrapped handler with a role-only rule.
func (m *Middleware) RequireRoles(roles ...models.RoleTag) func(http.Handler) http.Handler {
	return m.RequireRule(Rule{RequiredRoles: roles})
}

func routeParams(r *http.Request) Params {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	params := make(Params, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}
