package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

// AccountStore implements store.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
}

// NewAccountStore creates a new PostgreSQL-backed account store.
func NewAccountStore(pool *pgxpool.Pool, cfg StoreConfig) *AccountStore {
	cfg.ApplyDefaults()
	return &AccountStore{
		pool: pool,
		cfg:  cfg,
	}
}

const accountColumns = `account_id, google_subject, email, name, avatar_url, created_at, updated_at`

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1`

	account, err := scanAccount(s.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", mapPostgresError(err))
	}

	return account, nil
}

// FindOrCreate upserts the account keyed by Google subject. Non-empty profile
// fields replace the stored values.
func (s *AccountStore) FindOrCreate(ctx context.Context, criteria store.AccountCriteria) (*models.Account, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	accountID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account ID: %w", err)
	}

	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (google_subject) DO UPDATE SET
			email      = COALESCE(NULLIF(EXCLUDED.email, ''), accounts.email),
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), accounts.name),
			avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), accounts.avatar_url),
			updated_at = CASE
				WHEN (accounts.email, accounts.name, accounts.avatar_url) IS DISTINCT FROM (
					COALESCE(NULLIF(EXCLUDED.email, ''), accounts.email),
					COALESCE(NULLIF(EXCLUDED.name, ''), accounts.name),
					COALESCE(NULLIF(EXCLUDED.avatar_url, ''), accounts.avatar_url))
				THEN EXCLUDED.updated_at
				ELSE accounts.updated_at
			END
		RETURNING ` + accountColumns

	account, err := scanAccount(s.pool.QueryRow(ctx, query,
		accountID,
		criteria.GoogleSubject,
		criteria.Email,
		criteria.Name,
		criteria.AvatarURL,
		time.Now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find or create account: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("account_id", account.AccountID.String()).
		Bool("created", account.AccountID == accountID).
		Msg("Resolved account")

	return account, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.AccountID,
		&account.GoogleSubject,
		&account.Email,
		&account.Name,
		&account.AvatarURL,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
