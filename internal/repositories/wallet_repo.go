package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WalletRepo serves wallet reads. Balance changes go through the escrow engine.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

type WalletTxFilter struct {
	UserID *uuid.UUID
	Type   *string
	Status *string
	Limit  int
	Offset int
}

func (r *WalletRepo) ListTransactions(ctx context.Context, f WalletTxFilter) ([]models.WalletTransaction, error) {
	args := []any{}
	where := []string{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions`
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

	var out []models.WalletTransaction
	for rows.Next() {
		wt, err := scanWalletTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wt)
	}
	return out, rows.Err()
}

func (r *WalletRepo) GetTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	wt, err := scanWalletTransaction(r.pool.QueryRow(ctx, `SELECT `+walletTxColumns+` FROM wallet_transactions WHERE reference = $1`, reference))
	if err != nil {
		return nil, notFound(err, "wallet transaction")
	}
	return wt, nil
}

// ListPendingTopUps returns top-ups still waiting on the provider, for reconciliation.
func (r *WalletRepo) ListPendingTopUps(ctx context.Context, limit int) ([]models.WalletTransaction, error) {
	t, s := models.WalletTxTopUp, models.WalletTxStatusPending
	return r.ListTransactions(ctx, WalletTxFilter{Type: &t, Status: &s, Limit: limit})
}
