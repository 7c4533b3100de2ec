package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type timerStore struct {
	pending   []models.Transaction
	delivered []models.Transaction
	disputed  map[uuid.UUID]bool
}

func (s *timerStore) ListStalePending(context.Context, time.Time, int) ([]models.Transaction, error) {
	return s.pending, nil
}

func (s *timerStore) ListDeliveredBefore(context.Context, time.Time, int) ([]models.Transaction, error) {
	return s.delivered, nil
}

func (s *timerStore) HasActiveDispute(_ context.Context, id uuid.UUID) (bool, error) {
	return s.disputed[id], nil
}

type timerEngine struct {
	cancelled []uuid.UUID
	released  []uuid.UUID
	fail      map[uuid.UUID]error
}

func (e *timerEngine) Cancel(_ context.Context, id uuid.UUID, _ models.Actor) (*models.Transaction, error) {
	if err := e.fail[id]; err != nil {
		return nil, err
	}
	e.cancelled = append(e.cancelled, id)
	return &models.Transaction{ID: id, Status: models.TxStatusCancelled}, nil
}

func (e *timerEngine) Release(_ context.Context, id uuid.UUID, _ models.Actor) (*models.Transaction, error) {
	if err := e.fail[id]; err != nil {
		return nil, err
	}
	e.released = append(e.released, id)
	return &models.Transaction{ID: id, Status: models.TxStatusCompleted}, nil
}

type settleResult struct {
	paid bool
	err  error
}

type chargeSettler struct {
	results map[string]settleResult
	checked []string
}

func (c *chargeSettler) SettleCharge(_ context.Context, t *models.Transaction) (bool, error) {
	ref := *t.PaymentReference
	c.checked = append(c.checked, ref)
	r := c.results[ref]
	return r.paid, r.err
}

func timerTx(status string, reference string) models.Transaction {
	t := models.Transaction{ID: uuid.New(), Status: status}
	if reference != "" {
		t.PaymentReference = &reference
	}
	return t
}

func TestExpireCheckouts(t *testing.T) {
	tests := []struct {
		name        string
		tx          models.Transaction
		settle      settleResult
		noSettler   bool
		wantCancel  bool
		wantChecked bool
		wantStats   TimerStats
	}{
		{
			name:       "never initialized",
			tx:         timerTx(models.TxStatusPending, ""),
			wantCancel: true,
			wantStats:  TimerStats{Checked: 1, Expired: 1},
		},
		{
			name:        "initialized but unpaid",
			tx:          timerTx(models.TxStatusPending, "TXN-UNPAID"),
			wantCancel:  true,
			wantChecked: true,
			wantStats:   TimerStats{Checked: 1, Expired: 1},
		},
		{
			name:        "paid after the window closed",
			tx:          timerTx(models.TxStatusPending, "TXN-PAID"),
			settle:      settleResult{paid: true},
			wantChecked: true,
			wantStats:   TimerStats{Checked: 1, Captured: 1},
		},
		{
			name:        "gateway unreachable",
			tx:          timerTx(models.TxStatusPending, "TXN-DOWN"),
			settle:      settleResult{err: errors.New("connection refused")},
			wantChecked: true,
			wantStats:   TimerStats{Checked: 1, Failed: 1},
		},
		{
			name:      "no gateway configured",
			tx:        timerTx(models.TxStatusPending, "TXN-NOCFG"),
			noSettler: true,
			wantStats: TimerStats{Checked: 1, Skipped: 1},
		},
		{
			name:      "already captured",
			tx:        timerTx(models.TxStatusProcessing, "TXN-DONE"),
			wantStats: TimerStats{Skipped: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &timerStore{pending: []models.Transaction{tt.tx}}
			engine := &timerEngine{}
			settler := &chargeSettler{results: map[string]settleResult{}}
			if tt.tx.PaymentReference != nil {
				settler.results[*tt.tx.PaymentReference] = tt.settle
			}
			var charges ChargeSettler = settler
			if tt.noSettler {
				charges = nil
			}
			svc := NewTimerService(store, engine, charges, zap.NewNop())

			stats, err := svc.ExpireCheckouts(context.Background(), time.Hour, 100)
			if err != nil {
				t.Fatalf("ExpireCheckouts: %v", err)
			}
			if stats != tt.wantStats {
				t.Errorf("stats = %+v, want %+v", stats, tt.wantStats)
			}
			if got := len(engine.cancelled) == 1; got != tt.wantCancel {
				t.Errorf("cancelled = %v, want %v", engine.cancelled, tt.wantCancel)
			}
			if got := len(settler.checked) == 1; got != tt.wantChecked {
				t.Errorf("charge checked = %v, want %v", settler.checked, tt.wantChecked)
			}
		})
	}
}

func TestExpireCheckoutsCaptureWinsRace(t *testing.T) {
	tx := timerTx(models.TxStatusPending, "")
	store := &timerStore{pending: []models.Transaction{tx}}
	engine := &timerEngine{fail: map[uuid.UUID]error{
		tx.ID: apperr.New(apperr.CodeInvalidStatus, "transaction status changed concurrently"),
	}}
	svc := NewTimerService(store, engine, &chargeSettler{}, zap.NewNop())

	stats, err := svc.ExpireCheckouts(context.Background(), time.Hour, 100)
	if err != nil {
		t.Fatalf("ExpireCheckouts: %v", err)
	}
	if stats.Expired != 0 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want one failure and no expiry", stats)
	}
}

func TestExpireCheckoutsDisabled(t *testing.T) {
	store := &timerStore{pending: []models.Transaction{timerTx(models.TxStatusPending, "")}}
	engine := &timerEngine{}
	svc := NewTimerService(store, engine, nil, zap.NewNop())

	if _, err := svc.ExpireCheckouts(context.Background(), 0, 100); err != nil {
		t.Fatalf("ExpireCheckouts: %v", err)
	}
	if len(engine.cancelled) != 0 {
		t.Errorf("cancelled %v with expiry disabled", engine.cancelled)
	}
}

func TestReleaseDelivered(t *testing.T) {
	clean := timerTx(models.TxStatusDelivered, "TXN-1")
	disputed := timerTx(models.TxStatusDelivered, "TXN-2")
	moved := timerTx(models.TxStatusDisputed, "TXN-3")
	failing := timerTx(models.TxStatusDelivered, "TXN-4")

	store := &timerStore{
		delivered: []models.Transaction{clean, disputed, moved, failing},
		disputed:  map[uuid.UUID]bool{disputed.ID: true},
	}
	engine := &timerEngine{fail: map[uuid.UUID]error{
		failing.ID: apperr.New(apperr.CodeInvalidStatus, "escrow deposit is already refunded"),
	}}
	svc := NewTimerService(store, engine, nil, zap.NewNop())

	stats, err := svc.ReleaseDelivered(context.Background(), 72*time.Hour, 100)
	if err != nil {
		t.Fatalf("ReleaseDelivered: %v", err)
	}

	want := TimerStats{Checked: 3, Released: 1, Skipped: 2, Failed: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(engine.released) != 1 || engine.released[0] != clean.ID {
		t.Errorf("released = %v, want only %s", engine.released, clean.ID)
	}
}
