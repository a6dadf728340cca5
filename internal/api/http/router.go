package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/worker-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/worker-auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Auth              *handlers.AuthHandler
	Admin             *handlers.AdminHandler
	AdminMiddleware   *auth.AdminMiddleware
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	workerGroup := app.Group("/auth/worker")
	workerGroup.Post("/login", cfg.Auth.Login)

	workerProtected := workerGroup.Group("", cfg.SessionMiddleware.Handle)
	workerProtected.Get("/session", cfg.Auth.Session)
	workerProtected.Post("/session/refresh", cfg.Auth.Refresh)
	workerProtected.Post("/logout", cfg.Auth.Logout)

	adminGroup := app.Group("/admin", cfg.AdminMiddleware.Handle)
	adminGroup.Post("/qr-tokens", auth.RequireElevated(), cfg.Admin.GenerateQR)
	adminGroup.Get("/qr-tokens/:token", auth.RequireAdminRole(), cfg.Admin.QRStatus)
	adminGroup.Get("/sessions", auth.RequireAdminRole(), cfg.Admin.ListSessions)
	adminGroup.Delete("/sessions/:token", auth.RequireElevated(), cfg.Admin.RevokeSession)
	adminGroup.Post("/workers/:id/force-logout", auth.RequireElevated(), cfg.Admin.ForceLogout)
}
