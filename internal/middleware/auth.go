package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/xfans/internal/config"
	"github.com/example/xfans/internal/models"
	"github.com/example/xfans/internal/utils"
)

const claimsContextKey = "currentClaims"

// AuthMiddleware validates bearer JWTs and loads the claims into the
// request context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, authHeader)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// RequireAdmin allows only admin-role tokens past.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetCurrentClaims(c)
		if !ok || claims.Role != models.RoleAdmin {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// GetCurrentClaims extracts the authenticated claims from context.
func GetCurrentClaims(c *fiber.Ctx) (*utils.Claims, bool) {
	value := c.Locals(claimsContextKey)
	if value == nil {
		return nil, false
	}
	claims, ok := value.(*utils.Claims)
	return claims, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := GetCurrentClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
