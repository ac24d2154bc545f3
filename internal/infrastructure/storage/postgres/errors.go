package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

// SQLSTATE codes the ledger reacts to.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
)

// IsConflict reports whether err is a retryable concurrency failure.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

// MapError turns concurrency failures into TRANSACTION_CONFLICT so that
// tx.RunWithRetry can retry them. AppErrors and other errors pass through.
func MapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if IsConflict(err) {
		return apperror.NewTransactionConflict(entity, id).WithCause(err)
	}
	return err
}
