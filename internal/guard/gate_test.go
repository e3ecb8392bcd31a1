package guard

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trailhead/internal/guard/mocks"
	"trailhead/internal/identity/models"
	"trailhead/internal/permission"
)

type GateSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	checker *mocks.MockPermissionChecker
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.checker = mocks.NewMockPermissionChecker(s.ctrl)
}

func (s *GateSuite) newGate(session SessionState) *Gate {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(New(session, s.checker, WithLogger(logger)))
}

func (s *GateSuite) TestNewGatePanicsOnNilEvaluator() {
	s.Panics(func() { NewGate(nil) })
}

func (s *GateSuite) TestPendingWhileUnsettled() {
	g := s.newGate(&fakeSession{})
	d := g.Evaluate(context.Background(), GateRule{}, nil)
	s.True(d.Pending())
	s.Equal(ReasonInitializing, d.Reason)
}

// TestUnauthenticatedHidesWithoutRedirect verifies that an inline gate never
// produces the unauthenticated state; a hidden element must not bounce the
// visitor to login.
func (s *GateSuite) TestUnauthenticatedHidesWithoutRedirect() {
	g := s.newGate(&fakeSession{initialized: true})
	d := g.Evaluate(context.Background(), GateRule{}, nil)
	s.Equal(StateDeniedForbidden, d.State)
	s.Equal(ReasonNotAuthenticated, d.Reason)
}

func (s *GateSuite) TestMinRoleLevel() {
	rule := GateRule{MinRoleLevel: levelPtr(models.LevelTrailGuide)}

	s.Run("sufficient membership shows", func() {
		session := authenticatedSession(models.RoleGuide)
		session.levels = []models.RoleLevel{models.LevelSeniorGuide}
		s.True(s.newGate(session).Evaluate(context.Background(), rule, nil).Allowed())
	})

	s.Run("junior membership hides", func() {
		session := authenticatedSession(models.RoleGuide)
		session.levels = []models.RoleLevel{models.LevelBaseGuide}
		d := s.newGate(session).Evaluate(context.Background(), rule, nil)
		s.Equal(ReasonInsufficientLevel, d.Reason)
	})
}

func (s *GateSuite) TestPermissionGating() {
	rule := GateRule{Rule: Rule{
		RequiredPermission: permission.OpManageTeam,
		TeamParam:          "teamID",
	}}

	s.Run("granted shows", func() {
		g := s.newGate(authenticatedSession(models.RoleGuide))
		s.checker.EXPECT().
			Check(gomock.Any(), permission.OpManageTeam, gomock.Any(), gomock.Any()).
			Return(true)
		s.True(g.Evaluate(context.Background(), rule, Params{"teamID": "7"}).Allowed())
	})

	s.Run("denied hides", func() {
		g := s.newGate(authenticatedSession(models.RoleGuide))
		s.checker.EXPECT().
			Check(gomock.Any(), permission.OpManageTeam, gomock.Any(), gomock.Any()).
			Return(false)
		d := g.Evaluate(context.Background(), rule, Params{"teamID": "7"})
		s.Equal(ReasonPermissionDenied, d.Reason)
	})
}

// TestForceSync verifies the latency escape hatch: with ForceSync set and a
// synchronous requirement already satisfied, no backend round-trip happens.
func (s *GateSuite) TestForceSync() {
	s.Run("satisfied role skips the round-trip", func() {
		rule := GateRule{
			Rule: Rule{
				RequiredRoles:      []models.RoleTag{models.RoleGuide},
				RequiredPermission: permission.OpManageTeam,
				TeamParam:          "teamID",
			},
			ForceSync: true,
		}
		g := s.newGate(authenticatedSession(models.RoleGuide))
		s.True(g.Evaluate(context.Background(), rule, Params{"teamID": "7"}).Allowed())
	})

	s.Run("without a satisfied sync check the round-trip still happens", func() {
		rule := GateRule{
			Rule:      Rule{RequiredPermission: permission.OpManageTeam, TeamParam: "teamID"},
			ForceSync: true,
		}
		g := s.newGate(authenticatedSession(models.RoleGuide))
		s.checker.EXPECT().
			Check(gomock.Any(), permission.OpManageTeam, gomock.Any(), gomock.Any()).
			Return(false)
		d := g.Evaluate(context.Background(), rule, Params{"teamID": "7"})
		s.Equal(ReasonPermissionDenied, d.Reason)
	})

	s.Run("unsatisfied role still hides", func() {
		rule := GateRule{
			Rule: Rule{
				RequiredRoles:      []models.RoleTag{models.RoleGuide},
				RequiredPermission: permission.OpManageTeam,
			},
			ForceSync: true,
		}
		g := s.newGate(authenticatedSession(models.RoleExplorer))
		d := g.Evaluate(context.Background(), rule, nil)
		s.Equal(ReasonMissingRole, d.Reason)
	})
}
