package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trailhead/internal/permission"
	"trailhead/internal/permission/cache"
)

type staticTokens struct{ token string }

func (s staticTokens) Token() string { return s.token }

type PermissionClientSuite struct {
	suite.Suite
	cache *cache.Cache
}

func TestPermissionClientSuite(t *testing.T) {
	suite.Run(t, new(PermissionClientSuite))
}

func (s *PermissionClientSuite) SetupTest() {
	s.cache = cache.New()
}

func (s *PermissionClientSuite) newClient(handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	s.T().Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(srv.URL, staticTokens{token: "tok"}, s.cache, time.Second, WithLogger(logger))
}

func ptr(v int64) *int64 { return &v }

func (s *PermissionClientSuite) TestCheckAllowed() {
	var calls atomic.Int32
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		s.Equal("/permissions/check", r.URL.Path)
		s.Equal("Bearer tok", r.Header.Get("Authorization"))

		var req checkRequest
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal("create_activity", req.Operation)
		s.Nil(req.ResourceID)
		s.Require().NotNil(req.TeamID)
		s.Equal(int64(7), *req.TeamID)

		json.NewEncoder(w).Encode(checkResponse{HasPermission: true})
	})

	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))
	s.Equal(int32(1), calls.Load())
}

// TestCheckServedFromCache verifies that a repeated check with no intervening
// mutation costs zero additional network calls.
func (s *PermissionClientSuite) TestCheckServedFromCache() {
	var calls atomic.Int32
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(checkResponse{HasPermission: true})
	})

	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))
	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))
	s.Equal(int32(1), calls.Load(), "second check must be a cache hit")
}

func (s *PermissionClientSuite) TestCheckDenialIsCachedToo() {
	var calls atomic.Int32
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(checkResponse{HasPermission: false})
	})

	s.False(c.Check(context.Background(), permission.OpDeleteTeam, nil, ptr(7)))
	s.False(c.Check(context.Background(), permission.OpDeleteTeam, nil, ptr(7)))
	s.Equal(int32(1), calls.Load())
}

// TestCheckFailsClosed covers transport faults, error statuses, and malformed
// payloads: all read as denial, and none of them poison the cache.
func (s *PermissionClientSuite) TestCheckFailsClosed() {
	s.Run("non-2xx status", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		s.False(c.Check(context.Background(), permission.OpCreateActivity, nil, nil))
	})

	s.Run("transport failure", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		c := New(srv.URL, staticTokens{}, s.cache, time.Second, WithLogger(logger))
		s.False(c.Check(context.Background(), permission.OpCreateActivity, nil, nil))
	})

	s.Run("malformed payload", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{oops"))
		})
		s.False(c.Check(context.Background(), permission.OpCreateActivity, nil, nil))
	})

	s.Run("failure is not cached", func() {
		var calls atomic.Int32
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(checkResponse{HasPermission: true})
		})

		s.False(c.Check(context.Background(), permission.OpEditActivity, ptr(3), nil))
		s.True(c.Check(context.Background(), permission.OpEditActivity, ptr(3), nil), "retry after fault must reach the backend")
		s.Equal(int32(2), calls.Load())
	})
}

func (s *PermissionClientSuite) TestCheckUnregisteredOperationDeniesLocally() {
	var calls atomic.Int32
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	s.False(c.Check(context.Background(), permission.Operation("tpyo"), nil, nil))
	s.Zero(calls.Load())
}

func (s *PermissionClientSuite) TestUserPermissions() {
	s.Run("success", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/permissions/user", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"permissions": []map[string]any{
					{"operation": "create_activity", "team_id": int64(7), "description": "Create activities"},
				},
			})
		})

		records := c.UserPermissions(context.Background())
		s.Require().Len(records, 1)
		s.Equal("create_activity", records[0].Operation)
	})

	s.Run("empty on error", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		s.Empty(c.UserPermissions(context.Background()))
	})
}

func (s *PermissionClientSuite) TestRoleConfigurations() {
	s.Run("success", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/permissions/role-configurations", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"role_configurations": map[string]string{"level_2": "Senior Guide"},
			})
		})

		configs := c.RoleConfigurations(context.Background())
		s.Equal("Senior Guide", configs["level_2"])
	})

	s.Run("empty map on error", func() {
		c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		configs := c.RoleConfigurations(context.Background())
		s.NotNil(configs)
		s.Empty(configs)
	})
}

func (s *PermissionClientSuite) TestTeamPermissions() {
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/permissions/team/7/permissions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"permissions": map[string]TeamPermissionRow{
				"create_activity": {Level2: true, Level3: true, Level4: false, Description: "Create activities"},
			},
		})
	})

	table := c.TeamPermissions(context.Background(), 7)
	s.Require().Contains(table, "create_activity")
	s.True(table["create_activity"].Level2)
	s.False(table["create_activity"].Level4)
}

// TestUpdateClearsCache verifies cache coherence: no pre-update verdict
// survives a successful permission-table write.
func (s *PermissionClientSuite) TestUpdateClearsCache() {
	var checkCalls atomic.Int32
	verdict := true
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/permissions/check":
			checkCalls.Add(1)
			json.NewEncoder(w).Encode(checkResponse{HasPermission: verdict})
		case "/permissions/team/7/permissions":
			w.WriteHeader(http.StatusOK)
		default:
			s.Failf("unexpected path", "%s", r.URL.Path)
		}
	})

	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))

	verdict = false
	s.Require().True(c.UpdateTeamPermissions(context.Background(), 7, map[string]TeamPermissionRow{}))

	s.False(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)),
		"post-update check must not replay the pre-update verdict")
	s.Equal(int32(2), checkCalls.Load())
}

func (s *PermissionClientSuite) TestUpdateFailureKeepsCache() {
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/permissions/check":
			json.NewEncoder(w).Encode(checkResponse{HasPermission: true})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))
	s.False(c.UpdateTeamPermissions(context.Background(), 7, nil))
	s.Equal(1, s.cache.Len(), "failed write must not invalidate")
}

func (s *PermissionClientSuite) TestSyncClearsCache() {
	c := s.newClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/permissions/check":
			json.NewEncoder(w).Encode(checkResponse{HasPermission: true})
		case "/permissions/sync-permissions":
			var body struct {
				TeamID int64 `json:"team_id"`
			}
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
			s.Equal(int64(7), body.TeamID)
			w.WriteHeader(http.StatusOK)
		}
	})

	s.True(c.Check(context.Background(), permission.OpCreateActivity, nil, ptr(7)))
	s.Require().Equal(1, s.cache.Len())

	s.True(c.SyncTeamPermissions(context.Background(), 7))
	s.Zero(s.cache.Len())
}
