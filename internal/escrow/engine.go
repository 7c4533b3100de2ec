package escrow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/metrics"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Capture sources
const (
	SourceVerify    = "verify"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
)

// Engine owns every state change of transactions, escrow deposits and wallets.
type Engine struct {
	store      Store
	feePercent decimal.Decimal
	publisher  events.Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewEngine(store Store, feePercent decimal.Decimal, publisher events.Publisher, log *zap.Logger) (*Engine, error) {
	if err := ValidateFeePercent(feePercent); err != nil {
		return nil, err
	}
	return &Engine{
		store:      store,
		feePercent: feePercent,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}, nil
}

func (e *Engine) FeePercent() decimal.Decimal {
	return e.feePercent
}

type outboxItem struct {
	stream string
	event  events.Event
}

// outbox collects events produced inside a store transaction; they are
// published only after commit.
type outbox struct {
	items []outboxItem
}

func (o *outbox) add(stream, eventType string, payload map[string]any) {
	o.items = append(o.items, outboxItem{stream: stream, event: events.Event{Type: eventType, Payload: payload}})
}

func (e *Engine) run(ctx context.Context, fn func(tx Tx, ob *outbox) error) error {
	var ob outbox
	err := e.store.InTx(ctx, func(tx Tx) error {
		ob = outbox{}
		return fn(tx, &ob)
	})
	if err != nil {
		return err
	}
	for _, it := range ob.items {
		if err := e.publisher.Publish(ctx, it.stream, it.event); err != nil {
			e.log.Warn("failed to publish event",
				zap.String("stream", it.stream),
				zap.String("type", it.event.Type),
				zap.Error(err),
			)
		}
	}
	return nil
}

// transition is the single place a transaction status changes.
func (e *Engine) transition(ctx context.Context, tx Tx, ob *outbox, t *models.Transaction, to string, actor models.Actor) error {
	from, ok := models.NormalizeTxStatus(t.Status)
	if !ok {
		return apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("transaction has unknown status %q", t.Status))
	}
	if !models.CanTransition(from, to) {
		return apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	// the row may still carry legacy casing; match it as stored
	if err := tx.UpdateTransactionStatus(ctx, t.ID, t.Status, to); err != nil {
		return err
	}
	t.Status = to

	if err := tx.LogAudit(ctx, models.AuditLog{
		ActorUserID: actor.UserID,
		ActorType:   actor.Type,
		Action:      fmt.Sprintf("transaction_status_%s_to_%s", from, to),
		EntityType:  models.EntityTransaction,
		EntityID:    &t.ID,
		Meta:        map[string]any{"old_status": from, "new_status": to},
	}); err != nil {
		return err
	}

	metrics.EscrowTransitions.WithLabelValues(from, to).Inc()

	ob.add(events.StreamTransaction, events.EventTransactionStatusChanged, map[string]any{
		"transaction_id": t.ID.String(),
		"old_status":     from,
		"new_status":     to,
		"user_ids":       partyIDs(t),
	})
	return nil
}

func partyIDs(t *models.Transaction) []string {
	ids := []string{t.SellerID.String()}
	if t.BuyerID != nil {
		ids = append(ids, t.BuyerID.String())
	}
	return ids
}

// Capture describes a confirmed provider charge for a transaction.
type Capture struct {
	TransactionID uuid.UUID
	Reference     string
	PaidAmount    decimal.Decimal
	Currency      string
	Channel       string
	PayerEmail    string
	PayerName     string
	Source        string
}

type CaptureResult struct {
	Transaction *models.Transaction   `json:"transaction"`
	Deposit     *models.EscrowDeposit `json:"escrow_deposit,omitempty"`
	Duplicate   bool                  `json:"duplicate"`
}

// CapturePayment moves a pending transaction into escrow exactly once.
// A cancelled checkout is revived only by the reference it was last
// initialized with, so an expiry racing the buyer's payment never drops funds.
// A replay of an already captured reference returns Duplicate=true and
// changes nothing; an underpayment returns AMOUNT_MISMATCH and changes nothing.
func (e *Engine) CapturePayment(ctx context.Context, c Capture) (*CaptureResult, error) {
	if strings.TrimSpace(c.Reference) == "" {
		return nil, apperr.Validation("payment reference is required")
	}
	if !c.PaidAmount.IsPositive() {
		return nil, apperr.Validation("paid amount must be positive")
	}

	var res CaptureResult
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		res = CaptureResult{}

		t, err := tx.LockTransaction(ctx, c.TransactionID)
		if err != nil {
			return err
		}

		status, _ := models.NormalizeTxStatus(t.Status)
		issued := t.PaymentReference != nil && *t.PaymentReference == c.Reference
		switch {
		case status == models.TxStatusPending:
		case status == models.TxStatusCancelled && issued:
			// the checkout expired while the buyer was paying the charge we issued
			e.log.Warn("capturing payment for an expired checkout",
				zap.String("transaction_id", t.ID.String()),
				zap.String("reference", c.Reference),
			)
		case issued && status != models.TxStatusCancelled:
			res.Transaction = t
			res.Duplicate = true
			return nil
		default:
			return apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("transaction is %s, not pending", status))
		}

		if !strings.EqualFold(c.Currency, t.Currency) {
			return apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("paid in %s, expected %s", c.Currency, t.Currency))
		}
		if c.PaidAmount.LessThan(t.Amount) {
			return apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("paid %s, expected %s", c.PaidAmount.StringFixed(2), t.Amount.StringFixed(2)))
		}

		fee, payout, err := Split(t.Amount, e.feePercent)
		if err != nil {
			return err
		}

		actor := models.Actor{Type: models.ActorSystem}
		if c.Source == SourceWebhook {
			actor.Type = models.ActorWebhook
		}
		if err := e.transition(ctx, tx, ob, t, models.TxStatusProcessing, actor); err != nil {
			return err
		}

		rec := CaptureRecord{
			Reference:    c.Reference,
			FeePercent:   e.feePercent,
			PlatformFee:  fee,
			SellerPayout: payout,
			PaidAmount:   c.PaidAmount,
			Channel:      c.Channel,
			PaidAt:       e.now(),
		}
		if err := tx.RecordCapture(ctx, t.ID, rec); err != nil {
			return err
		}
		t.PaymentReference = &rec.Reference
		t.FeePercent = &rec.FeePercent
		t.PlatformFee = &fee
		t.SellerPayout = &payout
		t.PaidAmount = &rec.PaidAmount
		t.PaymentChannel = &rec.Channel
		t.PaidAt = &rec.PaidAt

		deposit := &models.EscrowDeposit{
			TransactionID: t.ID,
			SellerID:      t.SellerID,
			Amount:        t.Amount,
			PaidAmount:    c.PaidAmount,
			PlatformFee:   fee,
			SellerPayout:  payout,
			Currency:      t.Currency,
			PaymentMethod: c.Channel,
			Reference:     c.Reference,
			PayerEmail:    c.PayerEmail,
			PayerName:     c.PayerName,
			Status:        models.EscrowStatusPending,
		}
		inserted, err := tx.InsertEscrowDeposit(ctx, deposit)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.CodeDuplicate, "escrow deposit already recorded for this payment")
		}

		if _, _, err := e.applyWallet(ctx, tx, ob, walletMutation{
			UserID:        t.SellerID,
			Type:          models.WalletTxEscrowCredit,
			Bucket:        models.BucketPending,
			Amount:        payout,
			Currency:      t.Currency,
			Reference:     "escrow:" + c.Reference,
			TransactionID: &t.ID,
			Delta:         models.WalletDelta{Pending: payout},
			Actor:         actor,
		}); err != nil {
			return err
		}

		ob.add(events.StreamTransaction, events.EventPaymentCaptured, map[string]any{
			"transaction_id": t.ID.String(),
			"reference":      c.Reference,
			"amount":         t.Amount.StringFixed(2),
			"platform_fee":   fee.StringFixed(2),
			"seller_payout":  payout.StringFixed(2),
			"currency":       t.Currency,
			"source":         c.Source,
			"user_ids":       partyIDs(t),
		})

		res.Transaction = t
		res.Deposit = deposit
		return nil
	})
	if err != nil {
		metrics.PaymentCaptureFailures.WithLabelValues(string(apperr.CodeOf(err))).Inc()
		return nil, err
	}

	if !res.Duplicate {
		metrics.PaymentsCaptured.WithLabelValues(c.Source).Inc()
		e.log.Info("payment captured into escrow",
			zap.String("transaction_id", c.TransactionID.String()),
			zap.String("reference", c.Reference),
			zap.String("source", c.Source),
		)
	}
	return &res, nil
}

// Approve marks a captured payment as reviewed by an admin.
func (e *Engine) Approve(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error) {
	return e.simpleTransition(ctx, txID, models.TxStatusPaid, actor)
}

// Cancel abandons a checkout that was never paid.
func (e *Engine) Cancel(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error) {
	return e.simpleTransition(ctx, txID, models.TxStatusCancelled, actor)
}

// Close archives a completed or refunded transaction.
func (e *Engine) Close(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error) {
	return e.simpleTransition(ctx, txID, models.TxStatusClosed, actor)
}

func (e *Engine) simpleTransition(ctx context.Context, txID uuid.UUID, to string, actor models.Actor) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if err := e.transition(ctx, tx, ob, t, to, actor); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmDelivery is the buyer acknowledging receipt.
func (e *Engine) ConfirmDelivery(ctx context.Context, txID, buyerID uuid.UUID) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if t.BuyerID == nil || *t.BuyerID != buyerID {
			return apperr.New(apperr.CodeUserMismatch, "only the buyer can confirm delivery")
		}
		if err := e.transition(ctx, tx, ob, t, models.TxStatusDelivered, models.UserActor(buyerID)); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release pays the seller: the escrow deposit is released and the payout
// moves from the pending to the available bucket.
func (e *Engine) Release(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if isDisputed(t) {
			return apperr.New(apperr.CodeInvalidStatus, "transaction is under dispute, resolve the dispute instead")
		}
		if err := e.release(ctx, tx, ob, t, actor); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Refund returns the escrowed payment to the buyer and reverses the seller's
// pending credit. Rejecting a captured payment is a refund.
func (e *Engine) Refund(ctx context.Context, txID uuid.UUID, actor models.Actor, reason string) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if isDisputed(t) {
			return apperr.New(apperr.CodeInvalidStatus, "transaction is under dispute, resolve the dispute instead")
		}
		if err := e.refund(ctx, tx, ob, t, actor, reason); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reject refunds a captured payment an admin declined before approving it.
func (e *Engine) Reject(ctx context.Context, txID uuid.UUID, actor models.Actor, reason string) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		t, err := tx.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if status, _ := models.NormalizeTxStatus(t.Status); status != models.TxStatusProcessing {
			return apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("only payments awaiting approval can be rejected, transaction is %s", status))
		}
		if err := e.refund(ctx, tx, ob, t, actor, reason); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isDisputed(t *models.Transaction) bool {
	status, _ := models.NormalizeTxStatus(t.Status)
	return status == models.TxStatusDisputed
}

func (e *Engine) release(ctx context.Context, tx Tx, ob *outbox, t *models.Transaction, actor models.Actor) error {
	if err := e.transition(ctx, tx, ob, t, models.TxStatusCompleted, actor); err != nil {
		return err
	}
	dep, err := e.settleDeposit(ctx, tx, t, models.EscrowStatusReleased)
	if err != nil {
		return err
	}
	payout := dep.SellerPayout
	_, _, err = e.applyWallet(ctx, tx, ob, walletMutation{
		UserID:        t.SellerID,
		Type:          models.WalletTxEscrowRelease,
		Bucket:        models.BucketAvailable,
		Amount:        payout,
		Currency:      t.Currency,
		Reference:     "release:" + t.ID.String(),
		TransactionID: &t.ID,
		Delta: models.WalletDelta{
			Pending:     payout.Neg(),
			Available:   payout,
			TotalEarned: payout,
		},
		Actor: actor,
	})
	return err
}

func (e *Engine) refund(ctx context.Context, tx Tx, ob *outbox, t *models.Transaction, actor models.Actor, reason string) error {
	if err := e.transition(ctx, tx, ob, t, models.TxStatusRefunded, actor); err != nil {
		return err
	}
	dep, err := e.settleDeposit(ctx, tx, t, models.EscrowStatusRefunded)
	if err != nil {
		return err
	}
	payout := dep.SellerPayout
	_, _, err = e.applyWallet(ctx, tx, ob, walletMutation{
		UserID:        t.SellerID,
		Type:          models.WalletTxEscrowReversal,
		Bucket:        models.BucketPending,
		Amount:        payout,
		Currency:      t.Currency,
		Reference:     "reversal:" + t.ID.String(),
		TransactionID: &t.ID,
		Delta:         models.WalletDelta{Pending: payout.Neg()},
		Meta:          map[string]any{"reason": reason},
		Actor:         actor,
	})
	return err
}

func (e *Engine) settleDeposit(ctx context.Context, tx Tx, t *models.Transaction, to string) (*models.EscrowDeposit, error) {
	dep, err := tx.LockEscrowDeposit(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if status, _ := models.NormalizeEscrowStatus(dep.Status); status != models.EscrowStatusPending {
		return nil, apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("escrow deposit is already %s", status))
	}
	if err := tx.SetEscrowStatus(ctx, dep.ID, dep.Status, to); err != nil {
		return nil, err
	}
	dep.Status = to
	return dep, nil
}
