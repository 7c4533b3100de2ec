package events

import (
	"context"

	"github.com/google/uuid"
)

// Streams
const (
	StreamTransaction = "events:transaction"
	StreamWallet      = "events:wallet"
	StreamDispute     = "events:dispute"
)

// Event types
const (
	EventTransactionStatusChanged = "transaction_status_changed"
	EventPaymentCaptured          = "payment_captured"
	EventWalletUpdated            = "wallet_updated"
	EventPayoutUpdated            = "payout_updated"
	EventDisputeOpened            = "dispute_opened"
	EventDisputeMessage           = "dispute_message"
	EventDisputeResolved          = "dispute_resolved"
)

// Streams lists every stream a consumer may want to follow.
var Streams = []string{StreamTransaction, StreamWallet, StreamDispute}

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Recipients returns the user ids listed under payload["user_ids"].
// Works both for freshly built events and for ones decoded from JSON.
func (e Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	switch ids := e.Payload["user_ids"].(type) {
	case []string:
		for _, s := range ids {
			if id, err := uuid.Parse(s); err == nil {
				out = append(out, id)
			}
		}
	case []any:
		for _, v := range ids {
			s, _ := v.(string)
			if id, err := uuid.Parse(s); err == nil {
				out = append(out, id)
			}
		}
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// MultiPublisher fans an event out to every publisher and returns the first error.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, stream string, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, stream, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
