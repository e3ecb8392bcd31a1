package guard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trailhead/internal/guard/mocks"
	"trailhead/internal/identity/models"
	"trailhead/internal/permission"
)

type fakeHydrator struct {
	calls atomic.Int32
}

func (f *fakeHydrator) Initialize(context.Context) { f.calls.Add(1) }

type MiddlewareSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	checker  *mocks.MockPermissionChecker
	hydrator *fakeHydrator
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.checker = mocks.NewMockPermissionChecker(s.ctrl)
	s.hydrator = &fakeHydrator{}
}

func (s *MiddlewareSuite) newRouter(session SessionState, rule Rule, pattern string) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := New(session, s.checker, WithLogger(logger))
	mw := NewMiddleware(evaluator, s.hydrator)

	r := chi.NewRouter()
	r.With(mw.RequireRule(rule)).Get(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *MiddlewareSuite) get(router *chi.Mux, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (s *MiddlewareSuite) TestNewMiddlewarePanicsOnNilDependencies() {
	evaluator := New(&fakeSession{}, s.checker)
	s.Panics(func() { NewMiddleware(nil, s.hydrator) })
	s.Panics(func() { NewMiddleware(evaluator, nil) })
}

func (s *MiddlewareSuite) TestAllowedPassesThrough() {
	router := s.newRouter(authenticatedSession(models.RoleGuide), Rule{}, "/my-activities")
	rec := s.get(router, "/my-activities")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(int32(1), s.hydrator.calls.Load(), "session must be hydrated before evaluation")
}

// TestUnauthenticatedRedirectsToLogin verifies the redirect preserves the
// original target so a successful login can return the visitor there.
func (s *MiddlewareSuite) TestUnauthenticatedRedirectsToLogin() {
	router := s.newRouter(&fakeSession{initialized: true}, Rule{}, "/teams/{teamID}/settings")
	rec := s.get(router, "/teams/7/settings")
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/login?redirect=%2Fteams%2F7%2Fsettings", rec.Header().Get("Location"))
}

func (s *MiddlewareSuite) TestForbiddenRedirectsToUnauthorized() {
	rule := Rule{RequiredRoles: []models.RoleTag{models.RoleGuide}}
	router := s.newRouter(authenticatedSession(models.RoleExplorer), rule, "/my-activities")
	rec := s.get(router, "/my-activities")
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/unauthorized", rec.Header().Get("Location"))
}

// TestPendingAnswersNeutrally verifies an unsettled session yields a retryable
// response rather than a redirect that could be wrong moments later.
func (s *MiddlewareSuite) TestPendingAnswersNeutrally() {
	router := s.newRouter(&fakeSession{}, Rule{}, "/my-activities")
	rec := s.get(router, "/my-activities")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("1", rec.Header().Get("Retry-After"))
}

// TestRouteParamsReachChecker verifies chi URL parameters flow into the
// permission check as typed identifiers.
func (s *MiddlewareSuite) TestRouteParamsReachChecker() {
	rule := Rule{
		RequiredPermission: permission.OpEditTeamPermissions,
		TeamParam:          "teamID",
	}
	s.checker.EXPECT().
		Check(gomock.Any(), permission.OpEditTeamPermissions, gomock.Nil(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ permission.Operation, _ *int64, teamID *int64) bool {
			s.Require().NotNil(teamID)
			s.Equal(int64(7), *teamID)
			return true
		})

	router := s.newRouter(authenticatedSession(models.RoleGuide), rule, "/teams/{teamID}/permissions")
	rec := s.get(router, "/teams/7/permissions")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MiddlewareSuite) TestRequireRoles() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := New(authenticatedSession(models.RoleMasterGuide), s.checker, WithLogger(logger))
	mw := NewMiddleware(evaluator, s.hydrator)

	r := chi.NewRouter()
	r.With(mw.RequireRoles(models.RoleGuide)).Get("/my-activities", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := s.get(r, "/my-activities")
	s.Equal(http.StatusOK, rec.Code)
}
