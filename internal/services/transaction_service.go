package services

import (
	"context"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Admin actions on a transaction
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionRelease = "release"
	ActionRefund  = "refund"
	ActionClose   = "close"
)

// TransactionService exposes the ledger to buyers, sellers and staff. Every
// state change goes through the escrow engine.
type TransactionService struct {
	engine    *escrow.Engine
	txRepo    *repositories.TransactionRepo
	auditRepo *repositories.AuditRepo
	log       *zap.Logger
}

func NewTransactionService(engine *escrow.Engine, txRepo *repositories.TransactionRepo, auditRepo *repositories.AuditRepo, log *zap.Logger) *TransactionService {
	return &TransactionService{
		engine:    engine,
		txRepo:    txRepo,
		auditRepo: auditRepo,
		log:       log,
	}
}

type TransactionDetail struct {
	Transaction *models.Transaction   `json:"transaction"`
	Deposit     *models.EscrowDeposit `json:"escrow_deposit,omitempty"`
}

// Get returns a transaction to one of its parties or to staff.
func (s *TransactionService) Get(ctx context.Context, id, userID uuid.UUID, role string) (*TransactionDetail, error) {
	t, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(userID) && !rbac.HasPermission(role, rbac.PermViewAllTransactions) {
		return nil, apperr.NotFound("transaction")
	}
	out := &TransactionDetail{Transaction: t}
	dep, err := s.txRepo.GetEscrowDeposit(ctx, id)
	switch {
	case err == nil:
		out.Deposit = dep
	case !apperr.HasCode(err, apperr.CodeNotFound):
		return nil, err
	}
	return out, nil
}

// ListMine lists the caller's purchases (asBuyer) or sales.
func (s *TransactionService) ListMine(ctx context.Context, userID uuid.UUID, asBuyer bool, status *string, limit, offset int) ([]models.Transaction, error) {
	f := repositories.TransactionFilter{Status: status, Limit: limit, Offset: offset}
	if asBuyer {
		f.BuyerID = &userID
	} else {
		f.SellerID = &userID
	}
	return s.txRepo.List(ctx, f)
}

func (s *TransactionService) ConfirmDelivery(ctx context.Context, id, buyerID uuid.UUID) (*models.Transaction, error) {
	return s.engine.ConfirmDelivery(ctx, id, buyerID)
}

func (s *TransactionService) List(ctx context.Context, f repositories.TransactionFilter) ([]models.Transaction, error) {
	return s.txRepo.List(ctx, f)
}

func (s *TransactionService) ListEscrowDeposits(ctx context.Context, f repositories.EscrowDepositFilter) ([]models.EscrowDeposit, error) {
	return s.txRepo.ListEscrowDeposits(ctx, f)
}

// AdminAction applies one of the oversight actions. Reject is a refund of a
// payment that was never approved.
func (s *TransactionService) AdminAction(ctx context.Context, id, adminID uuid.UUID, action, reason string) (*models.Transaction, error) {
	actor := models.AdminActor(adminID)
	var (
		t   *models.Transaction
		err error
	)
	switch action {
	case ActionApprove:
		t, err = s.engine.Approve(ctx, id, actor)
	case ActionReject:
		if reason == "" {
			reason = "rejected by admin"
		}
		t, err = s.engine.Reject(ctx, id, actor, reason)
	case ActionRelease:
		t, err = s.engine.Release(ctx, id, actor)
	case ActionRefund:
		t, err = s.engine.Refund(ctx, id, actor, reason)
	case ActionClose:
		t, err = s.engine.Close(ctx, id, actor)
	default:
		return nil, apperr.Validation("unknown action " + action)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("admin transaction action",
		zap.String("transaction_id", id.String()),
		zap.String("action", action),
		zap.String("admin_id", adminID.String()),
		zap.String("status", t.Status),
	)
	return t, nil
}

func (s *TransactionService) AuditTrail(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	return s.auditRepo.List(ctx, repositories.AuditFilter{
		EntityType: &entityType,
		EntityID:   &entityID,
		Limit:      limit,
		Offset:     offset,
	})
}
