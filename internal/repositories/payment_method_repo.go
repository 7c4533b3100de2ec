package repositories

import (
	"context"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentMethodRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentMethodRepo(pool *pgxpool.Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// Create inserts p. The user's first method becomes the default.
func (r *PaymentMethodRepo) Create(ctx context.Context, p *models.PaymentMethod) error {
	return db.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM payment_methods WHERE user_id = $1`, p.UserID).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			p.IsDefault = true
		}
		if p.IsDefault && count > 0 {
			if _, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = false WHERE user_id = $1 AND is_default`, p.UserID); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO payment_methods (user_id, country, kind, label, provider, account_name, account_number,
				bank_code, phone_number, paybill_number, till_number, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at
		`, p.UserID, p.Country, p.Kind, p.Label, p.Provider, p.AccountName, p.AccountNumber,
			p.BankCode, p.PhoneNumber, p.PaybillNumber, p.TillNumber, p.IsDefault,
		).Scan(&p.ID, &p.CreatedAt)
	})
}

func (r *PaymentMethodRepo) Update(ctx context.Context, p *models.PaymentMethod) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_methods SET country = $3, kind = $4, label = $5, provider = $6, account_name = $7,
			account_number = $8, bank_code = $9, phone_number = $10, paybill_number = $11, till_number = $12
		WHERE id = $1 AND user_id = $2
	`, p.ID, p.UserID, p.Country, p.Kind, p.Label, p.Provider, p.AccountName,
		p.AccountNumber, p.BankCode, p.PhoneNumber, p.PaybillNumber, p.TillNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "payment method")
	}
	return nil
}

func (r *PaymentMethodRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.PaymentMethod, error) {
	p, err := scanPaymentMethod(r.pool.QueryRow(ctx, `SELECT `+paymentMethodColumns+` FROM payment_methods WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "payment method")
	}
	return p, nil
}

func (r *PaymentMethodRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentMethodColumns+` FROM payment_methods
		WHERE user_id = $1 ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentMethod
	for rows.Next() {
		p, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetDefault makes id the user's only default method.
func (r *PaymentMethodRepo) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	return db.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = false WHERE user_id = $1 AND is_default AND id <> $2`, userID, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = true WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound(pgx.ErrNoRows, "payment method")
		}
		return nil
	})
}

func (r *PaymentMethodRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1 AND user_id = $2`, id, userID)
	if db.PgCode(err) == db.CodeForeignKeyViolation {
		return apperr.New(apperr.CodeInvalidStatus, "payment method is referenced by a payout")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "payment method")
	}
	return nil
}
