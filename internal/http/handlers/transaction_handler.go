package handlers

import (
	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TransactionHandler is the buyer and seller view of the ledger and of the
// disputes raised on it.
type TransactionHandler struct {
	transactions *services.TransactionService
	disputes     *services.DisputeService
	log          *zap.Logger
}

func NewTransactionHandler(transactions *services.TransactionService, disputes *services.DisputeService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, disputes: disputes, log: log}
}

// ListTransactions returns sales by default, purchases with role=buyer.
// GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	asBuyer := false
	switch c.Query("role", "seller") {
	case "buyer":
		asBuyer = true
	case "seller":
	default:
		return badRequest(c, "role must be buyer or seller")
	}
	var status *string
	if v := c.Query("status"); v != "" {
		s, valid := models.NormalizeTxStatus(v)
		if !valid {
			return badRequest(c, "unknown status "+v)
		}
		status = &s
	}
	limit, offset := pagination(c)

	txs, err := h.transactions.ListMine(c.UserContext(), middleware.GetUserID(c), asBuyer, status, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return respondList(c, txs, limit, offset)
}

// GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid transaction id")
	}
	detail, err := h.transactions.Get(c.UserContext(), id, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, detail)
}

// POST /api/v1/transactions/:id/confirm-delivery
func (h *TransactionHandler) ConfirmDelivery(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid transaction id")
	}
	t, err := h.transactions.ConfirmDelivery(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, t)
}

// POST /api/v1/transactions/:id/disputes
func (h *TransactionHandler) OpenDispute(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid transaction id")
	}
	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	d, err := h.disputes.Open(c.UserContext(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, d)
}

// GetDispute is shared by parties and staff.
// GET /api/v1/disputes/:id
func (h *TransactionHandler) GetDispute(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid dispute id")
	}
	view, err := h.disputes.Get(c.UserContext(), id, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, view)
}

// GET /api/v1/disputes/:id/messages
func (h *TransactionHandler) ListDisputeMessages(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid dispute id")
	}
	msgs, err := h.disputes.Messages(c.UserContext(), id, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if msgs == nil {
		msgs = []models.DisputeMessage{}
	}
	return ok(c, msgs)
}

// PostDisputeMessage is mounted under /api/v1 and /admin-api.
// POST /api/v1/disputes/:id/messages
func (h *TransactionHandler) PostDisputeMessage(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.DisputeMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	msg, err := h.disputes.PostMessage(c.UserContext(), id, middleware.GetUserID(c), middleware.GetRole(c), req.Body)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, msg)
}
