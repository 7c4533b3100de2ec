package escrow

import (
	"context"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
)

// OpenDispute freezes a transaction in escrow until an admin resolves it.
// Only the buyer or the seller may open one, and only one may be active.
func (e *Engine) OpenDispute(ctx context.Context, txID, openerID uuid.UUID, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	var out *models.Dispute
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if !t.IsParty(openerID) {
			return apperr.New(apperr.CodeUserMismatch, "only the buyer or seller can open a dispute")
		}
		if isDisputed(t) {
			return apperr.New(apperr.CodeDuplicate, "a dispute is already open for this transaction")
		}
		if err := e.transition(ctx, tx, ob, t, models.TxStatusDisputed, models.UserActor(openerID)); err != nil {
			return err
		}

		d := &models.Dispute{
			TransactionID: t.ID,
			OpenedBy:      openerID,
			Reason:        reason,
			Status:        models.DisputeStatusOpen,
		}
		if err := tx.InsertDispute(ctx, d); err != nil {
			return err
		}
		if err := tx.LogAudit(ctx, models.AuditLog{
			ActorUserID: &openerID,
			ActorType:   models.ActorUser,
			Action:      "dispute_opened",
			EntityType:  models.EntityDispute,
			EntityID:    &d.ID,
			Meta:        map[string]any{"transaction_id": t.ID.String()},
		}); err != nil {
			return err
		}

		ob.add(events.StreamDispute, events.EventDisputeOpened, map[string]any{
			"dispute_id":     d.ID.String(),
			"transaction_id": t.ID.String(),
			"reason":         reason,
			"user_ids":       partyIDs(t),
		})
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveDispute settles a disputed transaction by releasing to the seller or
// refunding the buyer, and closes the dispute in the same store transaction.
func (e *Engine) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, outcome, resolution string) (*models.Dispute, error) {
	if !models.IsValidDisputeOutcome(outcome) {
		return nil, apperr.Validation("outcome must be release or refund")
	}

	var out *models.Dispute
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		d, err := tx.LockDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if !d.IsActive() {
			return apperr.New(apperr.CodeInvalidStatus, "dispute is already "+d.Status)
		}
		t, err := tx.LockTransaction(ctx, d.TransactionID)
		if err != nil {
			return err
		}

		actor := models.AdminActor(adminID)
		switch outcome {
		case models.DisputeOutcomeRelease:
			err = e.release(ctx, tx, ob, t, actor)
		case models.DisputeOutcomeRefund:
			err = e.refund(ctx, tx, ob, t, actor, resolution)
		}
		if err != nil {
			return err
		}

		resolved, err := tx.ResolveDispute(ctx, d.ID, outcome, resolution, adminID)
		if err != nil {
			return err
		}
		if err := tx.LogAudit(ctx, models.AuditLog{
			ActorUserID: &adminID,
			ActorType:   models.ActorAdmin,
			Action:      "dispute_resolved_" + outcome,
			EntityType:  models.EntityDispute,
			EntityID:    &d.ID,
			Meta:        map[string]any{"resolution": resolution},
		}); err != nil {
			return err
		}

		ob.add(events.StreamDispute, events.EventDisputeResolved, map[string]any{
			"dispute_id":     d.ID.String(),
			"transaction_id": t.ID.String(),
			"outcome":        outcome,
			"user_ids":       partyIDs(t),
		})
		out = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
