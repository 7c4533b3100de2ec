package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	if t.Item.Images == nil {
		t.Item.Images = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO transactions (store_id, product_id, seller_id, buyer_id, buyer_email, buyer_name, buyer_phone,
			item_name, item_price, item_currency, item_images, quantity, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`, t.StoreID, t.ProductID, t.SellerID, t.BuyerID, t.BuyerEmail, t.BuyerName, t.BuyerPhone,
		t.Item.Name, t.Item.Price, t.Item.Currency, t.Item.Images, t.Quantity, t.Amount, t.Currency, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return t, nil
}

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE payment_reference = $1`, reference))
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return t, nil
}

// SetPaymentReference attaches a provider reference to a transaction that is
// still awaiting payment. A new checkout attempt replaces the previous reference.
func (r *TransactionRepo) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET payment_reference = $2, updated_at = now()
		WHERE id = $1 AND lower(status) = 'pending'
	`, id, reference)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeDuplicate, "payment reference already used")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeInvalidStatus, "transaction is no longer awaiting payment")
	}
	return nil
}

type TransactionFilter struct {
	SellerID *uuid.UUID
	BuyerID  *uuid.UUID
	StoreID  *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	args := []any{}
	where := []string{}
	if f.SellerID != nil {
		args = append(args, *f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if f.BuyerID != nil {
		args = append(args, *f.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if f.StoreID != nil {
		args = append(args, *f.StoreID)
		where = append(where, fmt.Sprintf("store_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, strings.ToLower(*f.Status))
		where = append(where, fmt.Sprintf("lower(status) = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListStalePending returns unpaid checkouts untouched since cutoff. Initialize
// bumps updated_at, so a buyer who just opened a charge is not selected.
func (r *TransactionRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE lower(status) = 'pending' AND updated_at < $1
		ORDER BY updated_at LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListDeliveredBefore returns delivered transactions past the buyer's review
// window that have no active dispute.
func (r *TransactionRepo) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE lower(t.status) = 'delivered' AND t.delivered_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM disputes d
			WHERE d.transaction_id = t.id AND d.status IN ('open', 'in_progress')
		  )
		ORDER BY t.delivered_at LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *TransactionRepo) HasActiveDispute(ctx context.Context, txID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM disputes WHERE transaction_id = $1 AND status IN ('open', 'in_progress')
		)
	`, txID).Scan(&exists)
	return exists, err
}

// ListPendingWithReference returns checkouts that were sent to the provider
// but never captured, oldest first.
func (r *TransactionRepo) ListPendingWithReference(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE lower(status) = 'pending' AND payment_reference IS NOT NULL AND updated_at < $1
		ORDER BY updated_at LIMIT $2
	`, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

type EscrowDepositFilter struct {
	SellerID *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}

func (r *TransactionRepo) ListEscrowDeposits(ctx context.Context, f EscrowDepositFilter) ([]models.EscrowDeposit, error) {
	args := []any{}
	where := []string{}
	if f.SellerID != nil {
		args = append(args, *f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if f.Status != nil {
		status, _ := models.NormalizeEscrowStatus(*f.Status)
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + escrowDepositColumns + ` FROM escrow_deposits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EscrowDeposit
	for rows.Next() {
		d, err := scanEscrowDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) GetEscrowDeposit(ctx context.Context, transactionID uuid.UUID) (*models.EscrowDeposit, error) {
	d, err := scanEscrowDeposit(r.pool.QueryRow(ctx, `SELECT `+escrowDepositColumns+` FROM escrow_deposits WHERE transaction_id = $1`, transactionID))
	if err != nil {
		return nil, notFound(err, "escrow deposit")
	}
	return d, nil
}
