package handlers

import (
	"strings"

	"github.com/escrow-storefront/backend/internal/http/dto"
	"github.com/escrow-storefront/backend/internal/middleware"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/escrow-storefront/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminHandler is the oversight console. Read routes are open to support
// agents; the router gates money-moving routes on admin permissions.
type AdminHandler struct {
	transactions *services.TransactionService
	disputes     *services.DisputeService
	wallets      *services.WalletService
	log          *zap.Logger
}

func NewAdminHandler(transactions *services.TransactionService, disputes *services.DisputeService, wallets *services.WalletService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{transactions: transactions, disputes: disputes, wallets: wallets, log: log}
}

// GET /admin-api/transactions
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := repositories.TransactionFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s, valid := models.NormalizeTxStatus(v)
		if !valid {
			return badRequest(c, "unknown status "+v)
		}
		f.Status = &s
	}
	if v := c.Query("seller_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid seller_id")
		}
		f.SellerID = &id
	}
	if v := c.Query("store_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid store_id")
		}
		f.StoreID = &id
	}

	txs, err := h.transactions.List(c.UserContext(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return respondList(c, txs, limit, offset)
}

// ListEscrowDeposits accepts the legacy "locked" status as an alias of pending.
// GET /admin-api/escrow-deposits
func (h *AdminHandler) ListEscrowDeposits(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := repositories.EscrowDepositFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s, valid := models.NormalizeEscrowStatus(v)
		if !valid {
			return badRequest(c, "unknown escrow status "+v)
		}
		f.Status = &s
	}

	deps, err := h.transactions.ListEscrowDeposits(c.UserContext(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if deps == nil {
		deps = []models.EscrowDeposit{}
	}
	return respondList(c, deps, limit, offset)
}

// TransactionAction returns the handler for one oversight action.
// POST /admin-api/transactions/:id/{approve,reject,release,refund,close}
func (h *AdminHandler) TransactionAction(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := paramUUID(c, "id")
		if !valid {
			return badRequest(c, "invalid transaction id")
		}
		var req dto.RefundRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		t, err := h.transactions.AdminAction(c.UserContext(), id, middleware.GetUserID(c), action, strings.TrimSpace(req.Reason))
		if err != nil {
			return respondError(c, h.log, err)
		}
		return ok(c, t)
	}
}

// GET /admin-api/disputes
func (h *AdminHandler) ListDisputes(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := repositories.DisputeFilter{Status: optionalQuery(c, "status"), Limit: limit, Offset: offset}
	if v := c.Query("transaction_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid transaction_id")
		}
		f.TransactionID = &id
	}

	ds, err := h.disputes.List(c.UserContext(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if ds == nil {
		ds = []models.Dispute{}
	}
	return respondList(c, ds, limit, offset)
}

// ResolveDispute settles the escrow with a release or a refund.
// POST /admin-api/disputes/:id/resolve
func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	d, err := h.disputes.Resolve(c.UserContext(), id, middleware.GetUserID(c), strings.ToLower(strings.TrimSpace(req.Outcome)), req.Resolution)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, d)
}

// GET /admin-api/payouts
func (h *AdminHandler) ListPayouts(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	payouts, err := h.wallets.ListPayouts(c.UserContext(), optionalQuery(c, "status"), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if payouts == nil {
		payouts = []models.WalletTransaction{}
	}
	return respondList(c, payouts, limit, offset)
}

// CompletePayout records a payout settled outside Paystack transfers.
// POST /admin-api/payouts/:reference/complete
func (h *AdminHandler) CompletePayout(c *fiber.Ctx) error {
	res, err := h.wallets.CompletePayout(c.UserContext(), c.Params("reference"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, res)
}

// FailPayout returns the held amount to the seller's available balance.
// POST /admin-api/payouts/:reference/fail
func (h *AdminHandler) FailPayout(c *fiber.Ctx) error {
	var req dto.FailPayoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	res, err := h.wallets.FailPayout(c.UserContext(), c.Params("reference"), middleware.GetUserID(c), strings.TrimSpace(req.Reason))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, res)
}

// GET /admin-api/audit/:entityType/:id
func (h *AdminHandler) AuditTrail(c *fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid entity id")
	}
	limit, offset := pagination(c)
	logs, err := h.transactions.AuditTrail(c.UserContext(), c.Params("entityType"), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return respondList(c, logs, limit, offset)
}
