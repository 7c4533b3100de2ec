package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet buckets
const (
	BucketAvailable = "available"
	BucketPending   = "pending"
)

// Wallet transaction types
const (
	WalletTxTopUp          = "topup"
	WalletTxEscrowCredit   = "escrow_credit"
	WalletTxEscrowRelease  = "escrow_release"
	WalletTxEscrowReversal = "escrow_reversal"
	WalletTxPayout         = "payout"
	WalletTxAdjustment     = "adjustment"
)

// Wallet transaction statuses
const (
	WalletTxStatusPending   = "pending"
	WalletTxStatusCompleted = "completed"
	WalletTxStatusFailed    = "failed"
)

func IsValidBucket(b string) bool {
	return b == BucketAvailable || b == BucketPending
}

type Wallet struct {
	UserID           uuid.UUID       `json:"user_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	Currency         string          `json:"currency"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WalletDelta is a set of signed increments applied atomically to one wallet.
type WalletDelta struct {
	Available   decimal.Decimal
	Pending     decimal.Decimal
	TotalEarned decimal.Decimal
	TotalSpent  decimal.Decimal
}

func (d WalletDelta) IsZero() bool {
	return d.Available.IsZero() && d.Pending.IsZero() && d.TotalEarned.IsZero() && d.TotalSpent.IsZero()
}

// Apply returns w with d added, and false if any balance would go negative.
func (d WalletDelta) Apply(w Wallet) (Wallet, bool) {
	w.AvailableBalance = w.AvailableBalance.Add(d.Available)
	w.PendingBalance = w.PendingBalance.Add(d.Pending)
	w.TotalEarned = w.TotalEarned.Add(d.TotalEarned)
	w.TotalSpent = w.TotalSpent.Add(d.TotalSpent)
	ok := !w.AvailableBalance.IsNegative() && !w.PendingBalance.IsNegative() &&
		!w.TotalEarned.IsNegative() && !w.TotalSpent.IsNegative()
	return w, ok
}

type WalletTransaction struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Type            string          `json:"type"`
	Bucket          string          `json:"bucket"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	TransactionID   *uuid.UUID      `json:"transaction_id,omitempty"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	Meta            map[string]any  `json:"meta,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
