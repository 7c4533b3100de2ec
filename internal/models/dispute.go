package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen       = "open"
	DisputeStatusInProgress = "in_progress"
	DisputeStatusResolved   = "resolved"
	DisputeStatusClosed     = "closed"
)

// Dispute outcomes
const (
	DisputeOutcomeRelease = "release"
	DisputeOutcomeRefund  = "refund"
)

func IsValidDisputeOutcome(o string) bool {
	return o == DisputeOutcomeRelease || o == DisputeOutcomeRefund
}

func (d *Dispute) IsActive() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusInProgress
}

type Dispute struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	OpenedBy      uuid.UUID  `json:"opened_by"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	Resolution    *string    `json:"resolution,omitempty"`
	Outcome       *string    `json:"outcome,omitempty"`
	ResolvedBy    *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DisputeMessage struct {
	ID         uuid.UUID `json:"id"`
	DisputeID  uuid.UUID `json:"dispute_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderRole string    `json:"sender_role"` // buyer/seller/admin/support
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
