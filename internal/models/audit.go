package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorUser    = "user"
	ActorAdmin   = "admin"
	ActorSystem  = "system"
	ActorWebhook = "webhook"
)

// Audit entity types
const (
	EntityTransaction       = "transaction"
	EntityWallet            = "wallet"
	EntityWalletTransaction = "wallet_transaction"
	EntityDispute           = "dispute"
	EntityPaymentMethod     = "payment_method"
)

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"`
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Actor identifies who triggered a state change.
type Actor struct {
	UserID *uuid.UUID
	Type   string
}

func SystemActor() Actor {
	return Actor{Type: ActorSystem}
}

func UserActor(id uuid.UUID) Actor {
	return Actor{UserID: &id, Type: ActorUser}
}

func AdminActor(id uuid.UUID) Actor {
	return Actor{UserID: &id, Type: ActorAdmin}
}
