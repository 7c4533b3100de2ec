package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// probes hit these every few seconds
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if quietPaths[c.Path()] && status < fiber.StatusInternalServerError {
			return err
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if uid := GetOptionalUserID(c); uid != nil {
			fields = append(fields, zap.String("user_id", uid.String()))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}

		return err
	}
}
