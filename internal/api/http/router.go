package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-desk/internal/api/http/handlers"
	"github.com/spec-kit/campus-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Chat           *handlers.ChatHandler
	Tickets        *handlers.TicketsHandler
	Documents      *handlers.DocumentsHandler
	AuthMiddleware *auth.AuthMiddleware
	// PublicPath is the prefix documents are served under.
	PublicPath string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	api := app.Group("/api")
	api.Post("/chat", cfg.Chat.Chat)
	api.Get("/requests/:userId", cfg.Tickets.ListUserTickets)

	requireStaff := auth.RequireStaff()
	api.Get("/requests", cfg.AuthMiddleware.Handle, requireStaff, cfg.Tickets.ListTickets)
	api.Post("/admin/action", cfg.AuthMiddleware.Handle, requireStaff, cfg.Tickets.OfficeAction)
	api.Post("/update-status", cfg.AuthMiddleware.Handle, requireStaff, cfg.Tickets.UpdateStatus)

	publicPath := cfg.PublicPath
	if publicPath == "" {
		publicPath = "/public/certificates"
	}
	app.Get(publicPath+"/:name", cfg.Documents.Get)
}
