package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func insertAudit(ctx context.Context, q execer, entry models.AuditLog) error {
	_, err := q.Exec(ctx, `
		INSERT INTO audit_log (actor_user_id, actor_type, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ActorUserID, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, entry.Meta)
	return err
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	return insertAudit(ctx, r.pool, entry)
}

type AuditFilter struct {
	EntityType  *string
	EntityID    *uuid.UUID
	ActorUserID *uuid.UUID
	Limit       int
	Offset      int
}

func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	args := []any{}
	where := []string{}
	if f.EntityType != nil {
		args = append(args, *f.EntityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.EntityID != nil {
		args = append(args, *f.EntityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if f.ActorUserID != nil {
		args = append(args, *f.ActorUserID)
		where = append(where, fmt.Sprintf("actor_user_id = $%d", len(args)))
	}

	query := `SELECT id, actor_user_id, actor_type, action, entity_type, entity_id, meta, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorUserID, &l.ActorType, &l.Action, &l.EntityType, &l.EntityID, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
