package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware allows limit requests per window for each scope and
// client IP. Redis errors fail open.
func RateLimitMiddleware(rdb *redis.Client, scope string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}
		key := fmt.Sprintf("rl:%s:%s", scope, c.IP())

		ctx := c.UserContext()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
		}

		return c.Next()
	}
}
