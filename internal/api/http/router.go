package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Analytics.Metrics)

	app.Post("/api/tickets", cfg.Tickets.Submit)
	app.Post("/internal/classifications/:id", cfg.Tickets.ClassificationCallback)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireDepartmentAccess())
	staff.Get("/me", cfg.Staff.Me)
	staff.Get("/analytics", cfg.Analytics.Summary)
	staff.Get("/reports/sla.xlsx", cfg.Analytics.SLAReport)

	tickets := staff.Group("/tickets")
	tickets.Get("", cfg.StaffTickets.List)
	tickets.Get("/:id", cfg.StaffTickets.Get)
	tickets.Patch("/:id/status", cfg.StaffTickets.TransitionStatus)
	tickets.Put("/:id/classification", cfg.StaffTickets.CorrectClassification)
	tickets.Post("/:id/reclassify", cfg.StaffTickets.Reclassify)
	tickets.Put("/:id/reply-draft", cfg.StaffTickets.UpdateReplyDraft)
	tickets.Post("/:id/replies", cfg.StaffTickets.Reply)
	tickets.Get("/:id/history", cfg.StaffTickets.History)
	tickets.Get("/:id/messages", cfg.StaffTickets.Messages)
	tickets.Get("/:id/messages/stream", cfg.StaffTickets.Stream)
}
