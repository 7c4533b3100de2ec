package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EscrowStatusPending  = "pending"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"

	// legacy alias still sent by older admin clients
	escrowStatusLocked = "locked"
)

// NormalizeEscrowStatus maps "locked" and mixed-case values onto the canonical set.
func NormalizeEscrowStatus(s string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == escrowStatusLocked {
		n = EscrowStatusPending
	}
	switch n {
	case EscrowStatusPending, EscrowStatusReleased, EscrowStatusRefunded:
		return n, true
	}
	return n, false
}

type EscrowDeposit struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	SellerPayout  decimal.Decimal `json:"seller_payout"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference"`
	PayerEmail    string          `json:"payer_email"`
	PayerName     string          `json:"payer_name"`
	Status        string          `json:"status"`
	ReleasedAt    *time.Time      `json:"released_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
