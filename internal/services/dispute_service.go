package services

import (
	"context"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/escrow-storefront/backend/internal/rbac"
	"github.com/escrow-storefront/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxMessageLen = 4000

type DisputeService struct {
	engine      *escrow.Engine
	disputeRepo *repositories.DisputeRepo
	txRepo      *repositories.TransactionRepo
	publisher   events.Publisher
	log         *zap.Logger
}

func NewDisputeService(engine *escrow.Engine, disputeRepo *repositories.DisputeRepo, txRepo *repositories.TransactionRepo, publisher events.Publisher, log *zap.Logger) *DisputeService {
	return &DisputeService{
		engine:      engine,
		disputeRepo: disputeRepo,
		txRepo:      txRepo,
		publisher:   publisher,
		log:         log,
	}
}

type DisputeView struct {
	Dispute     *models.Dispute         `json:"dispute"`
	Transaction *models.Transaction     `json:"transaction"`
	Messages    []models.DisputeMessage `json:"messages"`
}

func (s *DisputeService) Open(ctx context.Context, txID, userID uuid.UUID, reason string) (*models.Dispute, error) {
	return s.engine.OpenDispute(ctx, txID, userID, reason)
}

// Get returns the dispute with its thread to a party or to staff.
func (s *DisputeService) Get(ctx context.Context, disputeID, userID uuid.UUID, role string) (*DisputeView, error) {
	d, t, _, err := s.load(ctx, disputeID, userID, role)
	if err != nil {
		return nil, err
	}
	msgs, err := s.disputeRepo.ListMessages(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.DisputeMessage{}
	}
	return &DisputeView{Dispute: d, Transaction: t, Messages: msgs}, nil
}

func (s *DisputeService) Messages(ctx context.Context, disputeID, userID uuid.UUID, role string) ([]models.DisputeMessage, error) {
	if _, _, _, err := s.load(ctx, disputeID, userID, role); err != nil {
		return nil, err
	}
	return s.disputeRepo.ListMessages(ctx, disputeID)
}

// PostMessage appends to the dispute thread. The first staff reply moves the
// dispute from open to in_progress.
func (s *DisputeService) PostMessage(ctx context.Context, disputeID, senderID uuid.UUID, role, body string) (*models.DisputeMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("message body is required")
	}
	if len(body) > maxMessageLen {
		return nil, apperr.Validation("message is too long")
	}

	d, t, senderRole, err := s.load(ctx, disputeID, senderID, role)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperr.New(apperr.CodeInvalidStatus, "dispute is "+d.Status)
	}

	if rbac.IsStaff(senderRole) && d.Status == models.DisputeStatusOpen {
		if err := s.disputeRepo.MarkInProgress(ctx, d.ID); err != nil {
			return nil, err
		}
	}

	m := &models.DisputeMessage{
		DisputeID:  d.ID,
		SenderID:   senderID,
		SenderRole: senderRole,
		Body:       body,
	}
	if err := s.disputeRepo.AddMessage(ctx, m); err != nil {
		return nil, err
	}

	recipients := []string{t.SellerID.String()}
	if t.BuyerID != nil {
		recipients = append(recipients, t.BuyerID.String())
	}
	_ = s.publisher.Publish(ctx, events.StreamDispute, events.Event{
		Type: events.EventDisputeMessage,
		Payload: map[string]any{
			"dispute_id":     d.ID.String(),
			"transaction_id": t.ID.String(),
			"message_id":     m.ID.String(),
			"sender_role":    senderRole,
			"body":           body,
			"user_ids":       recipients,
		},
	})
	return m, nil
}

func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, outcome, resolution string) (*models.Dispute, error) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	d, err := s.engine.ResolveDispute(ctx, disputeID, adminID, outcome, strings.TrimSpace(resolution))
	if err != nil {
		return nil, err
	}
	s.log.Info("dispute resolved",
		zap.String("dispute_id", d.ID.String()),
		zap.String("outcome", outcome),
		zap.String("admin_id", adminID.String()),
	)
	return d, nil
}

func (s *DisputeService) List(ctx context.Context, f repositories.DisputeFilter) ([]models.Dispute, error) {
	return s.disputeRepo.List(ctx, f)
}

func (s *DisputeService) load(ctx context.Context, disputeID, userID uuid.UUID, role string) (*models.Dispute, *models.Transaction, string, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, nil, "", err
	}
	t, err := s.txRepo.GetByID(ctx, d.TransactionID)
	if err != nil {
		return nil, nil, "", err
	}
	senderRole, ok := ParticipantRole(t, userID, role)
	if !ok {
		return nil, nil, "", apperr.New(apperr.CodeForbidden, "you are not part of this dispute")
	}
	return d, t, senderRole, nil
}

// ParticipantRole says in which capacity userID takes part in a dispute over t:
// staff keep their staff role, otherwise buyer or seller.
func ParticipantRole(t *models.Transaction, userID uuid.UUID, role string) (string, bool) {
	if rbac.IsStaff(role) {
		return role, true
	}
	if t.SellerID == userID {
		return "seller", true
	}
	if t.BuyerID != nil && *t.BuyerID == userID {
		return "buyer", true
	}
	return "", false
}
