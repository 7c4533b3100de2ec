package escrow

import (
	"context"
	"time"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence the engine runs on. InTx runs fn in one atomic
// transaction; concurrent writers are serialized by the row locks Lock* take,
// not by the isolation level. It may call fn more than once when the backend
// reports a serialization failure or deadlock, so fn must not have side
// effects outside tx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// GetWallet returns NOT_FOUND when the user has never held a balance.
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

// Tx is one store transaction. Lock* methods take row locks held until commit.
// Methods return *apperr.Error values for NOT_FOUND, INVALID_STATUS, DUPLICATE
// and INSUFFICIENT_FUNDS conditions.
type Tx interface {
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// UpdateTransactionStatus moves the row from `from` to `to` and stamps the
	// matching timestamp column. INVALID_STATUS if the row is no longer in `from`.
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error
	RecordCapture(ctx context.Context, id uuid.UUID, rec CaptureRecord) error

	// InsertEscrowDeposit reports false when a deposit for the transaction or
	// reference already exists.
	InsertEscrowDeposit(ctx context.Context, d *models.EscrowDeposit) (bool, error)
	LockEscrowDeposit(ctx context.Context, transactionID uuid.UUID) (*models.EscrowDeposit, error)
	SetEscrowStatus(ctx context.Context, id uuid.UUID, from, to string) error

	// ApplyWalletDelta creates the zero wallet if absent, then adds delta in one
	// statement. INSUFFICIENT_FUNDS if any balance would go negative,
	// AMOUNT_MISMATCH if currency differs from the wallet's.
	ApplyWalletDelta(ctx context.Context, userID uuid.UUID, currency string, delta models.WalletDelta) (*models.Wallet, error)
	// InsertWalletTransaction reports false when the reference is already taken.
	InsertWalletTransaction(ctx context.Context, wt *models.WalletTransaction) (bool, error)
	LockWalletTransaction(ctx context.Context, reference string) (*models.WalletTransaction, error)
	SetWalletTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error

	// InsertDispute returns DUPLICATE when the transaction already has an active dispute.
	InsertDispute(ctx context.Context, d *models.Dispute) error
	LockDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ResolveDispute(ctx context.Context, id uuid.UUID, outcome, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error)

	LogAudit(ctx context.Context, entry models.AuditLog) error
}

// CaptureRecord is what a successful capture writes onto the transaction row.
type CaptureRecord struct {
	Reference    string
	FeePercent   decimal.Decimal
	PlatformFee  decimal.Decimal
	SellerPayout decimal.Decimal
	PaidAmount   decimal.Decimal
	Channel      string
	PaidAt       time.Time
}
