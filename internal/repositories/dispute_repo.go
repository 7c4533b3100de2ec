package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "dispute")
	}
	return d, nil
}

type DisputeFilter struct {
	TransactionID *uuid.UUID
	Status        *string
	Limit         int
	Offset        int
}

func (r *DisputeRepo) List(ctx context.Context, f DisputeFilter) ([]models.Dispute, error) {
	args := []any{}
	where := []string{}
	if f.TransactionID != nil {
		args = append(args, *f.TransactionID)
		where = append(where, fmt.Sprintf("transaction_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + disputeColumns + ` FROM disputes`
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

	var out []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// MarkInProgress moves an open dispute to in_progress once staff reply.
func (r *DisputeRepo) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE disputes SET status = 'in_progress' WHERE id = $1 AND status = 'open'`, id)
	return err
}

func (r *DisputeRepo) AddMessage(ctx context.Context, m *models.DisputeMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dispute_messages (dispute_id, sender_id, sender_role, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.DisputeID, m.SenderID, m.SenderRole, m.Body).Scan(&m.ID, &m.CreatedAt)
}

func (r *DisputeRepo) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, sender_id, sender_role, body, created_at
		FROM dispute_messages WHERE dispute_id = $1
		ORDER BY created_at
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DisputeMessage
	for rows.Next() {
		var m models.DisputeMessage
		if err := rows.Scan(&m.ID, &m.DisputeID, &m.SenderID, &m.SenderRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
