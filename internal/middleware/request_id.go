package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	CtxRequestID    = "request_id"
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestIDMiddleware propagates the caller's request id or mints one. Oversized
// ids are replaced so they cannot bloat logs and audit rows.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.New().String()
		}
		c.Locals(CtxRequestID, reqID)
		c.Set(requestIDHeader, reqID)
		return c.Next()
	}
}

func GetRequestID(c *fiber.Ctx) string {
	reqID, _ := c.Locals(CtxRequestID).(string)
	return reqID
}
