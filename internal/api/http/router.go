package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/verification-service/internal/api/http/handlers"
	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/signaling"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	Sessions       *handlers.SessionsHandler
	Documents      *handlers.DocumentsHandler
	Files          *handlers.FilesHandler
	Signaling      *signaling.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/auth/staff/login", cfg.Staff.Login)
	app.Get("/auth/staff/me", cfg.AuthMiddleware.Handle, cfg.Staff.Me)
	app.Post("/staff", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.StaffRoleAdmin), cfg.Staff.CreateStaff)

	// Requester-facing routes: possession of the session token is the only
	// credential.
	public := app.Group("/public/sessions")
	public.Get("/:token", cfg.Sessions.GetJoinInfo)
	public.Post("/:token/end", cfg.Sessions.EndSession)
	public.Post("/:token/documents", cfg.Documents.UploadDocument)
	public.Post("/:token/recordings", cfg.Documents.UploadRecording)

	app.Get("/files/*", cfg.Files.Download)

	staffOnly := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.StaffRoleAgent, domain.StaffRoleAdmin)}

	sessions := app.Group("/sessions", staffOnly...)
	sessions.Post("/", cfg.Sessions.CreateSession)
	sessions.Get("/", cfg.Sessions.ListSessions)
	sessions.Get("/pending", cfg.Sessions.ListPendingSessions)
	sessions.Get("/:token", cfg.Sessions.GetSession)
	sessions.Post("/:token/claim", cfg.Sessions.ClaimSession)
	sessions.Patch("/:token/status", cfg.Sessions.UpdateStatus)
	sessions.Get("/:token/documents", cfg.Documents.ListDocuments)
	sessions.Get("/:token/recordings", cfg.Documents.ListRecordings)

	documents := app.Group("/documents", staffOnly...)
	documents.Patch("/:id/verification", cfg.Documents.ReviewDocument)
	documents.Post("/:id/face-comparison", cfg.Documents.CompareFaces)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:token", websocket.New(cfg.Signaling.Serve))
}
