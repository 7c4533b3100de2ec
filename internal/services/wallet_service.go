package services

import (
	"context"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletService struct {
	engine          *escrow.Engine
	walletRepo      *repositories.WalletRepo
	methodRepo      *repositories.PaymentMethodRepo
	defaultCurrency string
	log             *zap.Logger
}

func NewWalletService(
	engine *escrow.Engine,
	walletRepo *repositories.WalletRepo,
	methodRepo *repositories.PaymentMethodRepo,
	defaultCurrency string,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		engine:          engine,
		walletRepo:      walletRepo,
		methodRepo:      methodRepo,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := s.engine.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Currency == "" {
		w.Currency = s.defaultCurrency
	}
	return w, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, f repositories.WalletTxFilter) ([]models.WalletTransaction, error) {
	return s.walletRepo.ListTransactions(ctx, f)
}

// RequestPayout withdraws from the available balance to one of the user's
// payment methods, the default one when paymentMethodID is nil.
func (s *WalletService) RequestPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, paymentMethodID *uuid.UUID) (*models.WalletTransaction, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, apperr.Validation("amount must be positive with at most two decimal places")
	}

	method, err := s.payoutMethod(ctx, userID, paymentMethodID)
	if err != nil {
		return nil, err
	}

	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.AvailableBalance.LessThan(amount) {
		return nil, apperr.New(apperr.CodeInsufficientFunds, "available balance is "+w.AvailableBalance.StringFixed(2))
	}

	return s.engine.RequestPayout(ctx, userID, amount, w.Currency, method.ID, NewReference(RefPrefixPayout))
}

func (s *WalletService) payoutMethod(ctx context.Context, userID uuid.UUID, id *uuid.UUID) (*models.PaymentMethod, error) {
	if id != nil {
		return s.methodRepo.GetByID(ctx, userID, *id)
	}
	methods, err := s.methodRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].IsDefault {
			return &methods[i], nil
		}
	}
	return nil, apperr.Validation("add a payment method before requesting a payout")
}

func (s *WalletService) ListPayouts(ctx context.Context, status *string, limit, offset int) ([]models.WalletTransaction, error) {
	typ := models.WalletTxPayout
	return s.walletRepo.ListTransactions(ctx, repositories.WalletTxFilter{Type: &typ, Status: status, Limit: limit, Offset: offset})
}

func (s *WalletService) CompletePayout(ctx context.Context, reference string, adminID uuid.UUID) (*escrow.WalletResult, error) {
	return s.engine.CompletePayout(ctx, reference, models.AdminActor(adminID))
}

func (s *WalletService) FailPayout(ctx context.Context, reference string, adminID uuid.UUID, reason string) (*escrow.WalletResult, error) {
	if reason == "" {
		reason = "rejected by admin"
	}
	return s.engine.FailPayout(ctx, reference, models.AdminActor(adminID), reason)
}
