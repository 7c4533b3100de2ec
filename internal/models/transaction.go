package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusPaid       = "paid"
	TxStatusDelivered  = "delivered"
	TxStatusDisputed   = "disputed"
	TxStatusCompleted  = "completed"
	TxStatusRefunded   = "refunded"
	TxStatusCancelled  = "cancelled"
	TxStatusClosed     = "closed"
)

// Valid state transitions: from -> []to
var ValidTxTransitions = map[string][]string{
	TxStatusPending:    {TxStatusProcessing, TxStatusCancelled},
	TxStatusProcessing: {TxStatusPaid, TxStatusCompleted, TxStatusRefunded, TxStatusDisputed},
	TxStatusPaid:       {TxStatusDelivered, TxStatusCompleted, TxStatusRefunded, TxStatusDisputed},
	TxStatusDelivered:  {TxStatusCompleted, TxStatusRefunded, TxStatusDisputed},
	TxStatusDisputed:   {TxStatusCompleted, TxStatusRefunded},
	TxStatusCompleted:  {TxStatusClosed},
	TxStatusRefunded:   {TxStatusClosed},
	TxStatusCancelled:  {TxStatusProcessing}, // late capture of an expired checkout
	TxStatusClosed:     {},
}

// NormalizeTxStatus lowercases and trims s and reports whether it is a known status.
func NormalizeTxStatus(s string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	_, ok := ValidTxTransitions[n]
	return n, ok
}

func CanTransition(from, to string) bool {
	from, ok := NormalizeTxStatus(from)
	if !ok {
		return false
	}
	to, ok = NormalizeTxStatus(to)
	if !ok {
		return false
	}
	for _, s := range ValidTxTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HoldsEscrow reports whether funds for a transaction in this status sit in escrow.
func HoldsEscrow(status string) bool {
	switch status {
	case TxStatusProcessing, TxStatusPaid, TxStatusDelivered, TxStatusDisputed:
		return true
	}
	return false
}

type Transaction struct {
	ID               uuid.UUID        `json:"id"`
	StoreID          uuid.UUID        `json:"store_id"`
	ProductID        uuid.UUID        `json:"product_id"`
	SellerID         uuid.UUID        `json:"seller_id"`
	BuyerID          *uuid.UUID       `json:"buyer_id,omitempty"`
	BuyerEmail       string           `json:"buyer_email"`
	BuyerName        string           `json:"buyer_name"`
	BuyerPhone       *string          `json:"buyer_phone,omitempty"`
	Item             ItemSnapshot     `json:"item"`
	Quantity         int              `json:"quantity"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Status           string           `json:"status"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	FeePercent       *decimal.Decimal `json:"fee_percent,omitempty"`
	PlatformFee      *decimal.Decimal `json:"platform_fee,omitempty"`
	SellerPayout     *decimal.Decimal `json:"seller_payout,omitempty"`
	PaidAmount       *decimal.Decimal `json:"paid_amount,omitempty"`
	PaymentChannel   *string          `json:"payment_channel,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ItemSnapshot freezes what the buyer saw at checkout.
type ItemSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Images   []string        `json:"images"`
}

// IsParty reports whether userID is the buyer or the seller.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	if t.SellerID == userID {
		return true
	}
	return t.BuyerID != nil && *t.BuyerID == userID
}
