package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness and dependency reachability.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// Check pings the database and, when configured, redis.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{"database": "ok", "redis": "disabled"}
	healthy := true

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status["database"] = "unreachable"
		healthy = false
	}

	if h.redis != nil {
		status["redis"] = "ok"
		if err := h.redis.Ping(c.UserContext()).Err(); err != nil {
			status["redis"] = "unreachable"
			healthy = false
		}
	}

	code := fiber.StatusOK
	if !healthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"success": healthy, "data": status})
}
