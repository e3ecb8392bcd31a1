// Package http exposes the gateway's routes: auth lifecycle, catalog views,
// and team permission administration. Handlers translate HTTP to the session
// and client calls; every protected route is wrapped by the guard middleware
// declared in the router.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trailhead/internal/catalog"
	"trailhead/internal/identity/client"
	"trailhead/internal/identity/session"
	permclient "trailhead/internal/permission/client"
	"trailhead/internal/sentinel"
)

// Handler carries the dependencies shared by all routes.
type Handler struct {
	session     *session.Session
	catalog     *catalog.Client
	permissions *permclient.Client
	logger      *slog.Logger
}

// NewHandler creates the route handler.
// Panics if required dependencies are nil - fail fast at startup.
func NewHandler(sess *session.Session, cat *catalog.Client, perms *permclient.Client, logger *slog.Logger) *Handler {
	if sess == nil {
		panic("http.NewHandler: session is required")
	}
	if cat == nil {
		panic("http.NewHandler: catalog client is required")
	}
	if perms == nil {
		panic("http.NewHandler: permission client is required")
	}
	if logger == nil {
		panic("http.NewHandler: logger is required")
	}
	return &Handler{session: sess, catalog: cat, permissions: perms, logger: logger}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// sessionView is the state snapshot the frontend polls after navigation and
// auth events.
type sessionView struct {
	Initialized   bool   `json:"initialized"`
	Loading       bool   `json:"loading"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	IsGuide       bool   `json:"is_guide"`
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	h.session.Initialize(r.Context())

	view := sessionView{
		Initialized:   h.session.Initialized(),
		Loading:       h.session.Loading(),
		Authenticated: h.session.IsAuthenticated(),
		Error:         h.session.LastError(),
		IsAdmin:       h.session.IsAdmin(),
		IsGuide:       h.session.IsGuide(),
	}
	if identity := h.session.Identity(); identity != nil {
		view.UserID = identity.UserID
		view.FirstName = identity.FirstName
		view.LastName = identity.LastName
		view.Email = identity.Email
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.session.Login(r.Context(), req.Email, req.Password) {
		h.respondError(w, http.StatusUnauthorized, h.session.LastError())
		return
	}
	h.currentSession(w, r)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req client.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.session.Register(r.Context(), req) {
		h.respondError(w, http.StatusBadRequest, h.session.LastError())
		return
	}
	h.currentSession(w, r)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"page":     "login",
		"redirect": r.URL.Query().Get("redirect"),
	})
}

func (h *Handler) unauthorizedPage(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"page": "unauthorized"})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.catalog.Activities(r.Context())
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "activityID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	activity, err := h.catalog.Activity(r.Context(), id)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, activity)
}

func (h *Handler) myActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.catalog.MyActivities(r.Context())
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (h *Handler) listExpeditions(w http.ResponseWriter, r *http.Request) {
	expeditions, err := h.catalog.Expeditions(r.Context())
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"expeditions": expeditions})
}

func (h *Handler) getExpedition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "expeditionID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid expedition id")
		return
	}

	expedition, err := h.catalog.Expedition(r.Context(), id)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, expedition)
}

func (h *Handler) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sentinel.ErrUnauthorized):
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.ErrorContext(r.Context(), "catalog request failed", "error", err)
		h.respondError(w, http.StatusBadGateway, "catalog unavailable")
	}
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	records := h.permissions.UserPermissions(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]any{"permissions": records})
}

func (h *Handler) roleConfigurations(w http.ResponseWriter, r *http.Request) {
	configs := h.permissions.RoleConfigurations(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]any{"role_configurations": configs})
}

func (h *Handler) teamPermissions(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	table := h.permissions.TeamPermissions(r.Context(), teamID)
	h.respondJSON(w, http.StatusOK, map[string]any{"permissions": table})
}

func (h *Handler) updateTeamPermissions(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	var body struct {
		Permissions map[string]permclient.TeamPermissionRow `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.permissions.UpdateTeamPermissions(r.Context(), teamID, body.Permissions) {
		h.respondError(w, http.StatusBadGateway, "failed to update permissions")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) syncTeamPermissions(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	if !h.permissions.SyncTeamPermissions(r.Context(), teamID) {
		h.respondError(w, http.StatusBadGateway, "failed to sync permissions")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"synced": true})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
