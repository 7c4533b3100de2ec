package middleware

import (
	"strings"

	"github.com/escrow-storefront/backend/internal/auth"
	"github.com/escrow-storefront/backend/internal/config"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "missing authorization header")
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return unauthorized(c, "invalid authorization format")
		}

		if !authenticate(c, cfg, log, tokenStr) {
			return unauthorized(c, "invalid or expired token")
		}
		return c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if tokenStr != "" {
			authenticate(c, cfg, log, tokenStr)
		}
		return c.Next()
	}
}

func authenticate(c *fiber.Ctx, cfg *config.Config, log *zap.Logger, tokenStr string) bool {
	claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
	if err != nil {
		log.Debug("jwt parse error", zap.Error(err))
		return false
	}
	userID, _ := claims.UserID()

	c.Locals(CtxUserID, userID)
	c.Locals(CtxEmail, claims.Email)
	c.Locals(CtxRole, rbac.Resolve(cfg.IsAdmin(userID), cfg.IsSupport(userID), claims.AppMetadata.Role))
	return true
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg, "code": "UNAUTHORIZED"})
}

func forbidden(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msg, "code": "FORBIDDEN"})
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

// GetOptionalUserID returns nil for anonymous callers.
func GetOptionalUserID(c *fiber.Ctx) *uuid.UUID {
	id, ok := c.Locals(CtxUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}

func GetEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(CtxEmail).(string)
	return email
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	if role == "" {
		return rbac.RoleUser
	}
	return role
}

// StaffMiddleware admits admins and support agents.
func StaffMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.IsStaff(GetRole(c)) {
			return forbidden(c, "admin access required")
		}
		return c.Next()
	}
}

// RequirePermission rejects callers whose role lacks perm.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRole(c), perm) {
			return forbidden(c, "insufficient permissions")
		}
		return c.Next()
	}
}
