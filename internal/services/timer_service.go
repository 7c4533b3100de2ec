package services

import (
	"context"
	"time"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TimerStore interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error)
	HasActiveDispute(ctx context.Context, txID uuid.UUID) (bool, error)
}

type TimerEngine interface {
	Cancel(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error)
	Release(ctx context.Context, txID uuid.UUID, actor models.Actor) (*models.Transaction, error)
}

// ChargeSettler captures a checkout whose issued charge was paid.
type ChargeSettler interface {
	SettleCharge(ctx context.Context, t *models.Transaction) (bool, error)
}

type TimerStats struct {
	Checked  int
	Expired  int
	Captured int
	Released int
	Skipped  int
	Failed   int
}

// TimerService runs the checkout expiry and auto-release jobs.
type TimerService struct {
	store   TimerStore
	engine  TimerEngine
	charges ChargeSettler
	log     *zap.Logger
}

func NewTimerService(store TimerStore, engine TimerEngine, charges ChargeSettler, log *zap.Logger) *TimerService {
	return &TimerService{store: store, engine: engine, charges: charges, log: log}
}

// ExpireCheckouts cancels checkouts left unpaid for longer than expiry. A
// checkout that was sent to Paystack is verified first; a paid charge is
// captured instead, and an unreachable gateway leaves the row for next time.
func (s *TimerService) ExpireCheckouts(ctx context.Context, expiry time.Duration, limit int) (TimerStats, error) {
	var stats TimerStats
	if expiry <= 0 {
		return stats, nil
	}
	txs, err := s.store.ListStalePending(ctx, time.Now().Add(-expiry), limit)
	if err != nil {
		return stats, err
	}

	for i := range txs {
		t := &txs[i]
		if status, _ := models.NormalizeTxStatus(t.Status); status != models.TxStatusPending {
			stats.Skipped++
			continue
		}
		stats.Checked++

		if t.PaymentReference != nil {
			if s.charges == nil {
				stats.Skipped++
				continue
			}
			captured, err := s.charges.SettleCharge(ctx, t)
			if err != nil {
				s.log.Warn("expiry check failed, keeping checkout",
					zap.String("transaction_id", t.ID.String()),
					zap.String("reference", *t.PaymentReference),
					zap.Error(err),
				)
				stats.Failed++
				continue
			}
			if captured {
				s.log.Info("stale checkout was paid, captured",
					zap.String("transaction_id", t.ID.String()),
					zap.String("reference", *t.PaymentReference),
				)
				stats.Captured++
				continue
			}
		}

		if _, err := s.engine.Cancel(ctx, t.ID, models.SystemActor()); err != nil {
			// a capture may have won the race; the engine refuses to cancel a paid transaction
			s.log.Warn("failed to expire checkout", zap.String("transaction_id", t.ID.String()), zap.Error(err))
			stats.Failed++
			continue
		}
		s.log.Info("checkout expired", zap.String("transaction_id", t.ID.String()))
		stats.Expired++
	}
	return stats, nil
}

// ReleaseDelivered pays out delivered orders whose hold period passed
// without a dispute.
func (s *TimerService) ReleaseDelivered(ctx context.Context, after time.Duration, limit int) (TimerStats, error) {
	var stats TimerStats
	if after <= 0 {
		return stats, nil
	}
	txs, err := s.store.ListDeliveredBefore(ctx, time.Now().Add(-after), limit)
	if err != nil {
		return stats, err
	}

	for _, t := range txs {
		if status, _ := models.NormalizeTxStatus(t.Status); status != models.TxStatusDelivered {
			stats.Skipped++
			continue
		}
		stats.Checked++

		disputed, err := s.store.HasActiveDispute(ctx, t.ID)
		if err != nil {
			s.log.Error("failed to check disputes", zap.String("transaction_id", t.ID.String()), zap.Error(err))
			stats.Failed++
			continue
		}
		if disputed {
			stats.Skipped++
			continue
		}

		if _, err := s.engine.Release(ctx, t.ID, models.SystemActor()); err != nil {
			s.log.Error("auto-release failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
			stats.Failed++
			continue
		}
		s.log.Info("escrow auto-released", zap.String("transaction_id", t.ID.String()))
		stats.Released++
	}
	return stats, nil
}
