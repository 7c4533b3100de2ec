package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/escrow"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowStore is the Postgres implementation of escrow.Store.
type EscrowStore struct {
	pool *pgxpool.Pool
}

func NewEscrowStore(pool *pgxpool.Pool) *EscrowStore {
	return &EscrowStore{pool: pool}
}

func (s *EscrowStore) InTx(ctx context.Context, fn func(tx escrow.Tx) error) error {
	return db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgEscrowTx{tx: tx})
	})
}

func (s *EscrowStore) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, "wallet")
	}
	return w, nil
}

type pgEscrowTx struct {
	tx pgx.Tx
}

func (t *pgEscrowTx) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return tr, nil
}

func (t *pgEscrowTx) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE transactions SET
			status = $3,
			delivered_at = CASE WHEN $3 = 'delivered' THEN now() ELSE delivered_at END,
			completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeInvalidStatus, "transaction status changed concurrently")
	}
	return nil
}

func (t *pgEscrowTx) RecordCapture(ctx context.Context, id uuid.UUID, rec escrow.CaptureRecord) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE transactions SET
			payment_reference = $2, fee_percent = $3, platform_fee = $4, seller_payout = $5,
			paid_amount = $6, payment_channel = $7, paid_at = $8, updated_at = now()
		WHERE id = $1
	`, id, rec.Reference, rec.FeePercent, rec.PlatformFee, rec.SellerPayout, rec.PaidAmount, rec.Channel, rec.PaidAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicate, "payment reference already used by another transaction")
	}
	return err
}

func (t *pgEscrowTx) InsertEscrowDeposit(ctx context.Context, d *models.EscrowDeposit) (bool, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO escrow_deposits (transaction_id, seller_id, amount, paid_amount, platform_fee, seller_payout,
			currency, payment_method, reference, payer_email, payer_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`, d.TransactionID, d.SellerID, d.Amount, d.PaidAmount, d.PlatformFee, d.SellerPayout,
		d.Currency, d.PaymentMethod, d.Reference, d.PayerEmail, d.PayerName, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgEscrowTx) LockEscrowDeposit(ctx context.Context, transactionID uuid.UUID) (*models.EscrowDeposit, error) {
	d, err := scanEscrowDeposit(t.tx.QueryRow(ctx, `SELECT `+escrowDepositColumns+` FROM escrow_deposits WHERE transaction_id = $1 FOR UPDATE`, transactionID))
	if err != nil {
		return nil, notFound(err, "escrow deposit")
	}
	return d, nil
}

func (t *pgEscrowTx) SetEscrowStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE escrow_deposits SET
			status = $3,
			released_at = CASE WHEN $3 = 'released' THEN now() ELSE released_at END,
			refunded_at = CASE WHEN $3 = 'refunded' THEN now() ELSE refunded_at END
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeInvalidStatus, "escrow deposit status changed concurrently")
	}
	return nil
}

func (t *pgEscrowTx) ApplyWalletDelta(ctx context.Context, userID uuid.UUID, currency string, delta models.WalletDelta) (*models.Wallet, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, currency); err != nil {
		return nil, err
	}

	var held string
	if err := t.tx.QueryRow(ctx, `SELECT currency FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&held); err != nil {
		return nil, err
	}
	if currency != "" && !strings.EqualFold(held, currency) {
		return nil, apperr.New(apperr.CodeAmountMismatch, fmt.Sprintf("wallet holds %s, cannot apply %s", held, currency))
	}

	w, err := scanWallet(t.tx.QueryRow(ctx, `
		UPDATE wallets SET
			available_balance = available_balance + $2,
			pending_balance = pending_balance + $3,
			total_earned = total_earned + $4,
			total_spent = total_spent + $5,
			updated_at = now()
		WHERE user_id = $1
		RETURNING `+walletColumns,
		userID, delta.Available, delta.Pending, delta.TotalEarned, delta.TotalSpent))
	if isCheckViolation(err) {
		return nil, apperr.New(apperr.CodeInsufficientFunds, "insufficient balance")
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (t *pgEscrowTx) InsertWalletTransaction(ctx context.Context, wt *models.WalletTransaction) (bool, error) {
	meta := wt.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (user_id, type, bucket, amount, currency, status, reference,
			transaction_id, payment_method_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, created_at, updated_at
	`, wt.UserID, wt.Type, wt.Bucket, wt.Amount, wt.Currency, wt.Status, wt.Reference,
		wt.TransactionID, wt.PaymentMethodID, meta,
	).Scan(&wt.ID, &wt.CreatedAt, &wt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgEscrowTx) LockWalletTransaction(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	wt, err := scanWalletTransaction(t.tx.QueryRow(ctx, `SELECT `+walletTxColumns+` FROM wallet_transactions WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return nil, notFound(err, "wallet transaction")
	}
	return wt, nil
}

func (t *pgEscrowTx) SetWalletTransactionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallet_transactions SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeInvalidStatus, "wallet transaction status changed concurrently")
	}
	return nil
}

func (t *pgEscrowTx) InsertDispute(ctx context.Context, d *models.Dispute) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO disputes (transaction_id, opened_by, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, d.TransactionID, d.OpenedBy, d.Reason, d.Status).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicate, "a dispute is already open for this transaction")
	}
	return err
}

func (t *pgEscrowTx) LockDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(t.tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "dispute")
	}
	return d, nil
}

func (t *pgEscrowTx) ResolveDispute(ctx context.Context, id uuid.UUID, outcome, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(t.tx.QueryRow(ctx, `
		UPDATE disputes SET status = 'resolved', outcome = $2, resolution = $3, resolved_by = $4, resolved_at = now()
		WHERE id = $1
		RETURNING `+disputeColumns,
		id, outcome, resolution, resolvedBy))
	if err != nil {
		return nil, notFound(err, "dispute")
	}
	return d, nil
}

func (t *pgEscrowTx) LogAudit(ctx context.Context, entry models.AuditLog) error {
	return insertAudit(ctx, t.tx, entry)
}
