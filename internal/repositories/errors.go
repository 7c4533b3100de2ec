package repositories

import (
	"errors"

	"github.com/escrow-storefront/backend/internal/apperr"
	"github.com/escrow-storefront/backend/internal/db"
	"github.com/jackc/pgx/v5"
)

// notFound maps pgx.ErrNoRows onto a NOT_FOUND error for what; other errors pass through.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return db.PgCode(err) == db.CodeUniqueViolation
}

func isCheckViolation(err error) bool {
	return db.PgCode(err) == db.CodeCheckViolation
}
