package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/token-authority/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// ActorHeader carries the authenticated caller identity, set by the fronting
// gateway after it authenticates the calling service.
const ActorHeader = "X-Actor"

// NormalizeActor canonicalizes a caller identity: trimmed, lower-cased. Every
// comparison and every stored created_by value goes through this.
func NormalizeActor(actor string) string {
	return strings.ToLower(strings.TrimSpace(actor))
}

// ActorMiddleware extracts and normalizes the caller identity. Requests
// without one are rejected before reaching any handler.
type ActorMiddleware struct{}

// NewActorMiddleware constructs middleware.
func NewActorMiddleware() *ActorMiddleware {
	return &ActorMiddleware{}
}

// Handle enforces the presence of a caller identity on protected routes.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	actor := NormalizeActor(c.Get(ActorHeader))
	if actor == "" {
		return apperrors.NewUnauthorized("missing caller identity")
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the normalized caller identity.
func ActorFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return "", false
	}
	actor, ok := val.(string)
	return actor, ok && actor != ""
}
