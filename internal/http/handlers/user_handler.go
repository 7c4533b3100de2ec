package handlers

import (
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler reports who the caller is. Accounts live in Supabase auth, so
// everything comes from the verified token.
type UserHandler struct {
	log *zap.Logger
}

func NewUserHandler(log *zap.Logger) *UserHandler {
	return &UserHandler{log: log}
}

type meResponse struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// GET /api/v1/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	role := middleware.GetRole(c)
	perms := rbac.RolePermissions[role]
	if perms == nil {
		perms = []string{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: meResponse{
		UserID:      middleware.GetUserID(c).String(),
		Email:       middleware.GetEmail(c),
		Role:        role,
		Permissions: perms,
	}})
}
