package handlers

import (
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

// GetWallet returns available and pending balances.
// GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	w, err := h.walletService.GetWallet(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, w)
}

// GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit, offset := pagination(c)
	txs, err := h.walletService.ListTransactions(c.UserContext(), repositories.WalletTxFilter{
		UserID: &userID,
		Type:   optionalQuery(c, "type"),
		Status: optionalQuery(c, "status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	if txs == nil {
		txs = []models.WalletTransaction{}
	}
	return respondList(c, txs, limit, offset)
}

// RequestPayout moves funds from available to a pending payout.
// POST /api/v1/wallet/payouts
func (h *WalletHandler) RequestPayout(c *fiber.Ctx) error {
	var req dto.PayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	var methodID *uuid.UUID
	if req.PaymentMethodID != "" {
		id, err := uuid.Parse(req.PaymentMethodID)
		if err != nil {
			return badRequest(c, "invalid payment_method_id")
		}
		methodID = &id
	}

	wt, err := h.walletService.RequestPayout(c.UserContext(), middleware.GetUserID(c), req.Amount, methodID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, wt)
}
