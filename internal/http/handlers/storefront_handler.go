package handlers

import (
	"strings"

	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StorefrontHandler serves the public shop pages. Routes run behind
// OptionalAuthMiddleware, so a signed-in buyer is recognised but not required.
type StorefrontHandler struct {
	storefront *services.StorefrontService
	log        *zap.Logger
}

func NewStorefrontHandler(storefront *services.StorefrontService, log *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{storefront: storefront, log: log}
}

// GET /storefront-api/stores/:slug
func (h *StorefrontHandler) GetStore(c *fiber.Ctx) error {
	store, err := h.storefront.GetStore(c.UserContext(), strings.ToLower(c.Params("slug")))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, store)
}

// GET /storefront-api/stores/:slug/products/:productId
func (h *StorefrontHandler) GetProduct(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	store, sp, err := h.storefront.GetProduct(c.UserContext(), strings.ToLower(c.Params("slug")), productID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fiber.Map{"store": store, "product": sp})
}

// Checkout creates the pending transaction the buyer then pays for.
// POST /storefront-api/checkout/:slug/:productId
func (h *StorefrontHandler) Checkout(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	buyerID := middleware.GetOptionalUserID(c)
	if req.BuyerEmail == "" && buyerID != nil {
		req.BuyerEmail = middleware.GetEmail(c)
	}

	t, err := h.storefront.Checkout(c.UserContext(), strings.ToLower(c.Params("slug")), productID, services.CheckoutInput{
		BuyerID:    buyerID,
		BuyerEmail: req.BuyerEmail,
		BuyerName:  req.BuyerName,
		BuyerPhone: req.BuyerPhone,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, t)
}

// --- Reviews ---

// GET /storefront-api/stores/:slug/products/:productId/reviews
func (h *StorefrontHandler) ListReviews(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	limit, offset := pagination(c)
	reviews, err := h.storefront.ListReviews(c.UserContext(), strings.ToLower(c.Params("slug")), productID, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, reviews, limit, offset)
}

// POST /storefront-api/stores/:slug/products/:productId/reviews
func (h *StorefrontHandler) CreateReview(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rv, err := h.storefront.CreateReview(c.UserContext(), strings.ToLower(c.Params("slug")), productID, services.ReviewInput{
		UserID:       middleware.GetOptionalUserID(c),
		ReviewerName: req.ReviewerName,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, rv)
}

// PUT /storefront-api/reviews/:id
func (h *StorefrontHandler) UpdateReview(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid review id")
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rv, err := h.storefront.UpdateReview(c.UserContext(), id, middleware.GetUserID(c), req.Rating, req.Comment)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, rv)
}

// DELETE /storefront-api/reviews/:id
func (h *StorefrontHandler) DeleteReview(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid review id")
	}
	if err := h.storefront.DeleteReview(c.UserContext(), id, middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}

// --- Questions ---

// GET /storefront-api/stores/:slug/products/:productId/questions
func (h *StorefrontHandler) ListQuestions(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	limit, offset := pagination(c)
	qs, err := h.storefront.ListQuestions(c.UserContext(), strings.ToLower(c.Params("slug")), productID, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return respondList(c, qs, limit, offset)
}

// POST /storefront-api/stores/:slug/products/:productId/questions
func (h *StorefrontHandler) AskQuestion(c *fiber.Ctx) error {
	productID, valid := paramUUID(c, "productId")
	if !valid {
		return badRequest(c, "invalid product id")
	}
	var req dto.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	q, err := h.storefront.AskQuestion(c.UserContext(), strings.ToLower(c.Params("slug")), productID, middleware.GetOptionalUserID(c), req.AskerName, req.Question)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, q)
}

// POST /storefront-api/questions/:id/answer
func (h *StorefrontHandler) AnswerQuestion(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid question id")
	}
	var req dto.AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	q, err := h.storefront.AnswerQuestion(c.UserContext(), id, middleware.GetUserID(c), req.Answer)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, q)
}

// DELETE /storefront-api/questions/:id
func (h *StorefrontHandler) DeleteQuestion(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid question id")
	}
	if err := h.storefront.DeleteQuestion(c.UserContext(), id, middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}
