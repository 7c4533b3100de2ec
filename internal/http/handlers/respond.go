package handlers

import (
	"strconv"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// respondError maps err to its HTTP status. Internal details are logged,
// never returned.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	reqID := middleware.GetRequestID(c)

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     apperr.PublicMessage(err),
		Code:      string(code),
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	reqID := middleware.GetRequestID(c)
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      string(apperr.CodeValidation),
		RequestID: reqID,
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: data})
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// pagination reads limit and offset, clamping limit to maxLimit.
func pagination(c *fiber.Ctx) (int, int) {
	limit, offset := defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func respondList(c *fiber.Ctx, data any, limit, offset int) error {
	return c.JSON(dto.ListResponse{OK: true, Data: data, Limit: limit, Offset: offset})
}

func optionalQuery(c *fiber.Ctx, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}
