package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Incidents      *handlers.IncidentsHandler
	Authority      *handlers.AuthorityHandler
	Admin          *handlers.AdminHandler
	Media          *handlers.MediaHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/register", cfg.Auth.Register)
	app.Post("/auth/login", cfg.Auth.Login)

	// Public directory and incident feed.
	app.Get("/zones", cfg.Admin.ListZones)
	app.Get("/categories", cfg.Admin.ListCategories)
	app.Get("/incidents", cfg.Incidents.ListPublic)
	app.Get("/media/+", cfg.Media.Download)

	authed := app.Group("", cfg.AuthMiddleware.Handle)
	authed.Post("/auth/password/change", cfg.Auth.ChangePassword)

	// Citizen surface.
	authed.Post("/incidents", cfg.Incidents.Create)
	authed.Get("/incidents/mine", cfg.Incidents.ListMine)
	authed.Get("/incidents/:id", cfg.Incidents.Get)
	authed.Patch("/incidents/:id/status", cfg.Incidents.Transition)
	authed.Post("/incidents/:id/comments", cfg.Incidents.AddComment)
	authed.Post("/incidents/:id/photos", cfg.Incidents.AttachPhoto)
	authed.Post("/incidents/:id/upvote", cfg.Incidents.Upvote)

	// Authority surface.
	staff := authed.Group("", auth.RequireRole(domain.RoleAuthority, domain.RoleAdmin))
	staff.Get("/authority/queue", cfg.Authority.Queue)
	staff.Get("/authority/triage", cfg.Authority.ListTriage)
	staff.Post("/assignments/:id/accept", cfg.Authority.Accept)
	staff.Post("/assignments/:id/reject", cfg.Authority.Reject)
	staff.Post("/incidents/:id/retriage", cfg.Authority.Retriage)
	staff.Post("/incidents/:id/assign", cfg.Authority.Assign)
	staff.Post("/incidents/:id/responses", cfg.Authority.AddResponse)

	// Admin surface.
	admin := authed.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/zones", cfg.Admin.CreateZone)
	admin.Post("/categories", cfg.Admin.CreateCategory)
	admin.Post("/units", cfg.Admin.CreateUnit)
	admin.Get("/units", cfg.Admin.ListUnits)
	admin.Patch("/units/:id", cfg.Admin.UpdateUnit)
	admin.Post("/profiles/:id/role", cfg.Auth.PromoteRole)
	admin.Post("/incidents/:id/archive", cfg.Admin.ArchiveIncident)
	admin.Post("/incidents/:id/duplicate", cfg.Admin.MarkDuplicate)
	admin.Post("/sweep/run", cfg.Admin.RunSweep)
}
