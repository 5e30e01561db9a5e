package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-authority/internal/api/http/handlers"
	"github.com/spec-kit/token-authority/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Tokens          *handlers.TokensHandler
	ActorMiddleware *auth.ActorMiddleware
}

// RegisterRoutes wires HTTP routes. Operations acting on behalf of a caller
// require the gateway-supplied actor identity; pure token resolution does not.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	group := app.Group("/v1/token")
	actor := cfg.ActorMiddleware.Handle

	group.Post("/generate", actor, cfg.Tokens.Generate)
	group.Post("/payload", cfg.Tokens.Payload)
	group.Delete("/delete/token", actor, cfg.Tokens.DeleteByToken)
	group.Delete("/delete/service", actor, cfg.Tokens.DeleteByService)
	group.Delete("/delete/creator", actor, cfg.Tokens.DeleteByCreator)
	group.Post("/search", actor, cfg.Tokens.Search)
	group.Post("/whoisthis", cfg.Tokens.Whoisthis)
}
