package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trailhead/internal/guard"
	"trailhead/internal/identity/models"
	"trailhead/internal/permission"
	"trailhead/internal/platform/middleware"
)

// NewRouter assembles the full route table. Public catalog routes stay open;
// everything else declares its guard rule inline so the authorization surface
// of the gateway is readable in one place.
func NewRouter(h *Handler, guards *guard.Middleware, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	// Auth lifecycle and the pages denials land on.
	r.Post("/auth/login", h.login)
	r.Post("/auth/register", h.register)
	r.Post("/auth/logout", h.logout)
	r.Get("/auth/session", h.currentSession)
	r.Get("/login", h.loginPage)
	r.Get("/unauthorized", h.unauthorizedPage)

	// Public catalog.
	r.Get("/activities", h.listActivities)
	r.Get("/activities/{activityID}", h.getActivity)
	r.Get("/expeditions", h.listExpeditions)
	r.Get("/expeditions/{expeditionID}", h.getExpedition)

	// Guide workspace.
	r.With(guards.RequireRoles(models.RoleGuide)).
		Get("/my-activities", h.myActivities)
	r.With(guards.RequireRule(guard.Rule{})).
		Get("/permissions/mine", h.myPermissions)

	// Team administration.
	seniorGuide := models.LevelSeniorGuide
	r.With(guards.RequireRule(guard.Rule{
		RequiredRoles: []models.RoleTag{models.RoleGuide},
		RequiredLevel: &seniorGuide,
	})).Get("/teams/{teamID}/settings", h.roleConfigurations)

	editPerms := guard.Rule{
		RequiredRoles:      []models.RoleTag{models.RoleGuide},
		RequiredPermission: permission.OpEditTeamPermissions,
		TeamParam:          "teamID",
	}
	r.Route("/teams/{teamID}/permissions", func(r chi.Router) {
		r.With(guards.RequireRule(editPerms)).Get("/", h.teamPermissions)
		r.With(guards.RequireRule(editPerms)).Put("/", h.updateTeamPermissions)
		r.With(guards.RequireRule(editPerms)).Post("/sync", h.syncTeamPermissions)
	})

	// Admin console.
	r.With(guards.RequireRoles(models.RoleAdmin)).
		Get("/admin/role-configurations", h.roleConfigurations)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		h.respondError(w, http.StatusNotFound, "route not found")
	})

	return r
}
