package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/xfans/internal/apperrors"
	"github.com/example/xfans/internal/cache"
)

// RateLimit enforces a fixed-window per-caller limit on the wrapped
// routes. Keys are the authenticated user when available, the client
// IP otherwise. Redis errors fail open with a warning so a cache
// outage does not take the API down.
func RateLimit(limiter *cache.RateLimiter, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if claims, ok := GetCurrentClaims(c); ok {
			key = claims.UserID
		}
		key += ":" + c.Route().Path

		allowed, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			log.Warnw("rate limiter unavailable, failing open", "error", err)
			return c.Next()
		}
		if !allowed {
			return apperrors.ErrRateLimited
		}
		return c.Next()
	}
}
