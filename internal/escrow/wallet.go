package escrow

import (
	"context"
	"fmt"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/events"
	"github.com/escrow-storefront/backend/internal/metrics"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type walletMutation struct {
	UserID          uuid.UUID
	Type            string
	Bucket          string
	Amount          decimal.Decimal
	Currency        string
	Reference       string
	TransactionID   *uuid.UUID
	PaymentMethodID *uuid.UUID
	Delta           models.WalletDelta
	Meta            map[string]any
	Actor           models.Actor
}

// applyWallet records the wallet transaction first and applies the delta only
// if the reference was new. A reused reference is reported as applied=false.
func (e *Engine) applyWallet(ctx context.Context, tx Tx, ob *outbox, m walletMutation) (*models.Wallet, bool, error) {
	wt := &models.WalletTransaction{
		UserID:          m.UserID,
		Type:            m.Type,
		Bucket:          m.Bucket,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Status:          models.WalletTxStatusCompleted,
		Reference:       m.Reference,
		TransactionID:   m.TransactionID,
		PaymentMethodID: m.PaymentMethodID,
		Meta:            m.Meta,
	}
	inserted, err := tx.InsertWalletTransaction(ctx, wt)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}

	w, err := e.applyDelta(ctx, tx, ob, m.UserID, m.Currency, m.Delta, m.Type, m.Reference, m.Actor)
	if err != nil {
		return nil, false, err
	}
	return w, true, nil
}

func (e *Engine) applyDelta(ctx context.Context, tx Tx, ob *outbox, userID uuid.UUID, currency string, delta models.WalletDelta, kind, reference string, actor models.Actor) (*models.Wallet, error) {
	w, err := tx.ApplyWalletDelta(ctx, userID, currency, delta)
	if err != nil {
		return nil, err
	}
	if err := tx.LogAudit(ctx, models.AuditLog{
		ActorUserID: actor.UserID,
		ActorType:   actor.Type,
		Action:      "wallet_" + kind,
		EntityType:  models.EntityWallet,
		EntityID:    &userID,
		Meta: map[string]any{
			"reference": reference,
			"available": delta.Available.StringFixed(2),
			"pending":   delta.Pending.StringFixed(2),
		},
	}); err != nil {
		return nil, err
	}
	metrics.WalletCredits.WithLabelValues(kind).Inc()
	ob.add(events.StreamWallet, events.EventWalletUpdated, map[string]any{
		"user_id":           userID.String(),
		"kind":              kind,
		"reference":         reference,
		"available_balance": w.AvailableBalance.StringFixed(2),
		"pending_balance":   w.PendingBalance.StringFixed(2),
		"user_ids":          []string{userID.String()},
	})
	return w, nil
}

// GetBalance returns the user's wallet, or a zero wallet if none exists yet.
func (e *Engine) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := e.store.GetWallet(ctx, userID)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return &models.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

type WalletResult struct {
	Wallet            *models.Wallet            `json:"wallet"`
	WalletTransaction *models.WalletTransaction `json:"wallet_transaction,omitempty"`
	Duplicate         bool                      `json:"duplicate"`
}

// Credit adds amount to one bucket. A reference that was already used is a no-op.
func (e *Engine) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bucket, currency, reference string, actor models.Actor) (*WalletResult, error) {
	return e.adjust(ctx, userID, amount, bucket, currency, reference, actor, false)
}

// Debit subtracts amount from one bucket; INSUFFICIENT_FUNDS if the bucket
// would go negative. A reference that was already used is a no-op.
func (e *Engine) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bucket, currency, reference string, actor models.Actor) (*WalletResult, error) {
	return e.adjust(ctx, userID, amount, bucket, currency, reference, actor, true)
}

func (e *Engine) adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bucket, currency, reference string, actor models.Actor, debit bool) (*WalletResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if !models.IsValidBucket(bucket) {
		return nil, apperr.Validation(fmt.Sprintf("unknown wallet bucket %q", bucket))
	}
	if strings.TrimSpace(reference) == "" {
		return nil, apperr.Validation("reference is required")
	}

	signed, direction := amount, "credit"
	if debit {
		signed, direction = amount.Neg(), "debit"
	}
	var delta models.WalletDelta
	if bucket == models.BucketAvailable {
		delta.Available = signed
	} else {
		delta.Pending = signed
	}

	var res WalletResult
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		res = WalletResult{}
		w, applied, err := e.applyWallet(ctx, tx, ob, walletMutation{
			UserID:    userID,
			Type:      models.WalletTxAdjustment,
			Bucket:    bucket,
			Amount:    amount,
			Currency:  currency,
			Reference: reference,
			Delta:     delta,
			Meta:      map[string]any{"direction": direction},
			Actor:     actor,
		})
		if err != nil {
			return err
		}
		res.Wallet = w
		res.Duplicate = !applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		w, err := e.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		res.Wallet = w
	}
	return &res, nil
}

// InitiateTopUp records a pending top-up before the buyer is sent to the provider.
func (e *Engine) InitiateTopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, reference string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	w, err := e.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Currency != "" && !strings.EqualFold(w.Currency, currency) {
		return nil, apperr.Validation(fmt.Sprintf("wallet holds %s, top up in %s", w.Currency, w.Currency))
	}
	wt := &models.WalletTransaction{
		UserID:    userID,
		Type:      models.WalletTxTopUp,
		Bucket:    models.BucketAvailable,
		Amount:    amount,
		Currency:  currency,
		Status:    models.WalletTxStatusPending,
		Reference: reference,
	}
	err = e.run(ctx, func(tx Tx, ob *outbox) error {
		inserted, err := tx.InsertWalletTransaction(ctx, wt)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.CodeDuplicate, "top-up reference already used")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wt, nil
}

// TopUpCompletion is a confirmed provider charge for a wallet top-up.
// UserID is the authenticated caller on client verify, or the metadata owner
// on webhook delivery.
type TopUpCompletion struct {
	Reference  string
	PaidAmount decimal.Decimal
	Currency   string
	UserID     *uuid.UUID
	Source     string
}

// CompleteTopUp credits the available bucket exactly once per reference.
func (e *Engine) CompleteTopUp(ctx context.Context, c TopUpCompletion) (*WalletResult, error) {
	if strings.TrimSpace(c.Reference) == "" {
		return nil, apperr.Validation("payment reference is required")
	}
	if !c.PaidAmount.IsPositive() {
		return nil, apperr.Validation("paid amount must be positive")
	}

	var res WalletResult
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		res = WalletResult{}
		actor := models.Actor{Type: models.ActorSystem, UserID: c.UserID}
		if c.Source == SourceWebhook {
			actor.Type = models.ActorWebhook
		}

		wt, err := tx.LockWalletTransaction(ctx, c.Reference)
		if apperr.HasCode(err, apperr.CodeNotFound) {
			// charge made without a prior initialize; record it on first sight
			if c.UserID == nil {
				return apperr.NotFound("top-up")
			}
			w, applied, err := e.applyWallet(ctx, tx, ob, walletMutation{
				UserID:    *c.UserID,
				Type:      models.WalletTxTopUp,
				Bucket:    models.BucketAvailable,
				Amount:    c.PaidAmount,
				Currency:  c.Currency,
				Reference: c.Reference,
				Delta:     models.WalletDelta{Available: c.PaidAmount},
				Meta:      map[string]any{"source": c.Source},
				Actor:     actor,
			})
			if err != nil {
				return err
			}
			res.Wallet = w
			res.Duplicate = !applied
			return nil
		}
		if err != nil {
			return err
		}

		if wt.Type != models.WalletTxTopUp {
			return apperr.Validation("reference does not belong to a top-up")
		}
		if c.UserID != nil && *c.UserID != wt.UserID {
			return apperr.New(apperr.CodeUserMismatch, "top-up belongs to another user")
		}
		res.WalletTransaction = wt

		switch wt.Status {
		case models.WalletTxStatusCompleted:
			res.Duplicate = true
			return nil
		case models.WalletTxStatusFailed:
			return apperr.New(apperr.CodeInvalidStatus, "top-up already failed")
		}

		if wt.Currency != "" && !strings.EqualFold(wt.Currency, c.Currency) {
			return apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("paid in %s, expected %s", c.Currency, wt.Currency))
		}
		if c.PaidAmount.LessThan(wt.Amount) {
			return apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("paid %s, expected %s", c.PaidAmount.StringFixed(2), wt.Amount.StringFixed(2)))
		}

		if err := tx.SetWalletTransactionStatus(ctx, wt.ID, models.WalletTxStatusPending, models.WalletTxStatusCompleted); err != nil {
			return err
		}
		wt.Status = models.WalletTxStatusCompleted

		w, err := e.applyDelta(ctx, tx, ob, wt.UserID, wt.Currency, models.WalletDelta{Available: wt.Amount}, models.WalletTxTopUp, wt.Reference, actor)
		if err != nil {
			return err
		}
		res.Wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Duplicate && res.WalletTransaction != nil {
		w, err := e.GetBalance(ctx, res.WalletTransaction.UserID)
		if err != nil {
			return nil, err
		}
		res.Wallet = w
	} else if res.Duplicate && c.UserID != nil {
		w, err := e.GetBalance(ctx, *c.UserID)
		if err != nil {
			return nil, err
		}
		res.Wallet = w
	}
	return &res, nil
}

// RequestPayout moves amount out of the available bucket into a pending payout.
func (e *Engine) RequestPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency string, paymentMethodID uuid.UUID, reference string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	wt := &models.WalletTransaction{
		UserID:          userID,
		Type:            models.WalletTxPayout,
		Bucket:          models.BucketAvailable,
		Amount:          amount,
		Currency:        currency,
		Status:          models.WalletTxStatusPending,
		Reference:       reference,
		PaymentMethodID: &paymentMethodID,
	}
	actor := models.UserActor(userID)
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		inserted, err := tx.InsertWalletTransaction(ctx, wt)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.CodeDuplicate, "payout reference already used")
		}
		if _, err := e.applyDelta(ctx, tx, ob, userID, currency, models.WalletDelta{Available: amount.Neg()}, models.WalletTxPayout, reference, actor); err != nil {
			return err
		}
		ob.add(events.StreamWallet, events.EventPayoutUpdated, payoutPayload(wt))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("payout requested",
		zap.String("user_id", userID.String()),
		zap.String("reference", reference),
		zap.String("amount", amount.StringFixed(2)),
	)
	return wt, nil
}

// CompletePayout confirms the money reached the seller. Idempotent.
func (e *Engine) CompletePayout(ctx context.Context, reference string, actor models.Actor) (*WalletResult, error) {
	return e.settlePayout(ctx, reference, actor, models.WalletTxStatusCompleted, "")
}

// FailPayout returns the amount to the available bucket. Idempotent.
func (e *Engine) FailPayout(ctx context.Context, reference string, actor models.Actor, reason string) (*WalletResult, error) {
	return e.settlePayout(ctx, reference, actor, models.WalletTxStatusFailed, reason)
}

func (e *Engine) settlePayout(ctx context.Context, reference string, actor models.Actor, to, reason string) (*WalletResult, error) {
	var res WalletResult
	err := e.run(ctx, func(tx Tx, ob *outbox) error {
		res = WalletResult{}
		wt, err := tx.LockWalletTransaction(ctx, reference)
		if err != nil {
			return err
		}
		if wt.Type != models.WalletTxPayout {
			return apperr.Validation("reference does not belong to a payout")
		}
		res.WalletTransaction = wt
		if wt.Status == to {
			res.Duplicate = true
			return nil
		}
		if wt.Status != models.WalletTxStatusPending {
			return apperr.New(apperr.CodeInvalidStatus, fmt.Sprintf("payout is already %s", wt.Status))
		}
		if err := tx.SetWalletTransactionStatus(ctx, wt.ID, models.WalletTxStatusPending, to); err != nil {
			return err
		}
		wt.Status = to

		delta := models.WalletDelta{TotalSpent: wt.Amount}
		if to == models.WalletTxStatusFailed {
			delta = models.WalletDelta{Available: wt.Amount}
		}
		w, err := e.applyDelta(ctx, tx, ob, wt.UserID, wt.Currency, delta, models.WalletTxPayout+"_"+to, wt.Reference, actor)
		if err != nil {
			return err
		}
		res.Wallet = w

		payload := payoutPayload(wt)
		if reason != "" {
			payload["reason"] = reason
		}
		ob.add(events.StreamWallet, events.EventPayoutUpdated, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		w, err := e.GetBalance(ctx, res.WalletTransaction.UserID)
		if err != nil {
			return nil, err
		}
		res.Wallet = w
	}
	return &res, nil
}

func payoutPayload(wt *models.WalletTransaction) map[string]any {
	return map[string]any{
		"reference": wt.Reference,
		"status":    wt.Status,
		"amount":    wt.Amount.StringFixed(2),
		"currency":  wt.Currency,
		"user_ids":  []string{wt.UserID.String()},
	}
}
