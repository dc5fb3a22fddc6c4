package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params with sane defaults.
// A skip param, when present, takes precedence over page for clients
// that paginate by offset directly.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := parseInt(c.Query("page", "1"), 1)
	limit := parseInt(c.Query("limit", "20"), 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	pg := Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if skip := c.Query("skip"); skip != "" {
		if parsed, err := strconv.Atoi(skip); err == nil && parsed >= 0 {
			pg.Offset = parsed
			pg.Page = parsed/limit + 1
		}
	}

	return pg
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
