package services

import (
	"context"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentMethodService struct {
	repo      *repositories.PaymentMethodRepo
	auditRepo *repositories.AuditRepo
	log       *zap.Logger
}

func NewPaymentMethodService(repo *repositories.PaymentMethodRepo, auditRepo *repositories.AuditRepo, log *zap.Logger) *PaymentMethodService {
	return &PaymentMethodService{repo: repo, auditRepo: auditRepo, log: log}
}

// NormalizePaymentMethod trims every field and checks the kind has the
// destination details it needs.
func NormalizePaymentMethod(p *models.PaymentMethod) error {
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
	p.Label = strings.TrimSpace(p.Label)
	for _, f := range []**string{&p.Provider, &p.AccountName, &p.AccountNumber, &p.BankCode, &p.PhoneNumber, &p.PaybillNumber, &p.TillNumber} {
		*f = trimmed(*f)
	}

	if len(p.Country) != 2 {
		return apperr.Validation("country must be an ISO 3166 alpha-2 code")
	}
	if !models.IsValidPaymentMethodKind(p.Kind) {
		return apperr.Validation("kind must be one of mobile_money_paybill, mobile_money_till, mobile_money_phone, bank_account")
	}
	if p.Label == "" {
		return apperr.Validation("label is required")
	}
	if field := p.MissingField(); field != "" {
		return apperr.Validation(field + " is required for " + p.Kind)
	}
	return nil
}

func (s *PaymentMethodService) Create(ctx context.Context, userID uuid.UUID, p *models.PaymentMethod) error {
	p.UserID = userID
	if err := NormalizePaymentMethod(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "payment_method_created",
		EntityType:  models.EntityPaymentMethod,
		EntityID:    &p.ID,
		Meta:        map[string]any{"kind": p.Kind, "country": p.Country},
	})
	return nil
}

func (s *PaymentMethodService) Update(ctx context.Context, userID, id uuid.UUID, p *models.PaymentMethod) error {
	p.ID = id
	p.UserID = userID
	if err := NormalizePaymentMethod(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "payment_method_updated",
		EntityType:  models.EntityPaymentMethod,
		EntityID:    &p.ID,
	})
	return nil
}

func (s *PaymentMethodService) Get(ctx context.Context, userID, id uuid.UUID) (*models.PaymentMethod, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *PaymentMethodService) List(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *PaymentMethodService) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.SetDefault(ctx, userID, id)
}

// Delete removes a method; one already referenced by a payout is kept.
func (s *PaymentMethodService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorUser,
		Action:      "payment_method_deleted",
		EntityType:  models.EntityPaymentMethod,
		EntityID:    &id,
	})
	return nil
}
