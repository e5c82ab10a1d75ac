package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/multisession/internal/store"
)

// constraintErrors maps named schema constraints onto store sentinels.
// accounts_google_subject_key is absent: FindOrCreate upserts on it.
var constraintErrors = map[string]error{
	"sessions_token_key":       store.ErrDuplicateToken,
	"sessions_account_id_fkey": store.ErrAccountNotFound,
}

// mapPostgresError turns PostgreSQL errors into store sentinels where one
// applies, and otherwise labels them by class. Other errors pass through.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return fmt.Errorf("%w: %s", sentinel, pgErr.Detail)
	}

	switch {
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
	case pgErr.Code == pgerrcode.SerializationFailure, pgErr.Code == pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgErr.Code == pgerrcode.AdminShutdown,
		pgErr.Code == pgerrcode.CrashShutdown,
		pgErr.Code == pgerrcode.CannotConnectNow:
		return fmt.Errorf("database unavailable: %w", err)
	case pgErr.Code == pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	case pgerrcode.IsInsufficientResources(pgErr.Code):
		return fmt.Errorf("database resource limit: %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
