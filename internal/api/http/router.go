package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportops/owner-relay/internal/api/http/handlers"
	apperrors "github.com/supportops/owner-relay/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	WebhookPath string
	Health      *handlers.HealthHandler
	Webhook     *handlers.WebhookHandler
	Metrics     *handlers.MetricsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Show)

	app.Post(cfg.WebhookPath, cfg.Webhook.Receive)

	app.Use(func(*fiber.Ctx) error {
		return apperrors.NewNotFound("route")
	})
}
