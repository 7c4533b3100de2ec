package handlers

import (
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const signatureHeader = "X-Paystack-Signature"

type PaystackHandler struct {
	paymentService *services.PaymentService
	log            *zap.Logger
}

func NewPaystackHandler(paymentService *services.PaymentService, log *zap.Logger) *PaystackHandler {
	return &PaystackHandler{paymentService: paymentService, log: log}
}

// GetConfig returns the public key for the inline checkout.
// GET /paystack-api/config
func (h *PaystackHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.paymentService.PublicConfig()
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, cfg)
}

// Initialize starts the charge for a pending checkout. Guests may pay for
// guest checkouts; signed-in buyers only for their own.
// POST /paystack-api/initialize
func (h *PaystackHandler) Initialize(c *fiber.Ctx) error {
	var req dto.InitializePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		return badRequest(c, "invalid transaction_id")
	}

	session, err := h.paymentService.InitializeCheckout(c.UserContext(), txID, req.Email, req.CallbackURL, middleware.GetOptionalUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, session)
}

// Verify asks Paystack for the charge status and captures it into escrow.
// POST /paystack-api/verify
func (h *PaystackHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return badRequest(c, "reference is required")
	}

	res, err := h.paymentService.VerifyCheckout(c.UserContext(), req.Reference, middleware.GetOptionalUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, res)
}

// Webhook receives Paystack events. The body must be the raw bytes Paystack
// signed, so it is never re-encoded before verification.
// POST /paystack-api/webhook
func (h *PaystackHandler) Webhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	result, err := h.paymentService.HandleWebhook(c.UserContext(), body, c.Get(signatureHeader))
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeUnauthorized:
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature", Code: string(apperr.CodeUnauthorized)})
		case apperr.CodeValidation:
			return badRequest(c, apperr.PublicMessage(err))
		}
		// anything else is retried by Paystack
		h.log.Error("webhook failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "processing failed", Code: string(apperr.CodeOf(err))})
	}
	return c.JSON(dto.WebhookAck{Received: true, Result: result})
}

// InitializeTopUp starts a wallet top-up charge.
// POST /paystack-api/wallet-topup/initialize
func (h *PaystackHandler) InitializeTopUp(c *fiber.Ctx) error {
	var req dto.TopUpInitializeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = middleware.GetEmail(c)
	}
	if email == "" {
		return badRequest(c, "email is required")
	}

	session, err := h.paymentService.InitializeTopUp(c.UserContext(), middleware.GetUserID(c), email, req.Amount, req.Currency, req.CallbackURL)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, session)
}

// VerifyTopUp credits the wallet once the top-up charge is paid.
// POST /paystack-api/wallet-topup/verify
func (h *PaystackHandler) VerifyTopUp(c *fiber.Ctx) error {
	var req dto.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.paymentService.VerifyTopUp(c.UserContext(), middleware.GetUserID(c), req.Reference)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, res)
}
