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

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
	now  func() time.Time
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool, cfg StoreConfig) *SessionStore {
	cfg.ApplyDefaults()
	return &SessionStore{
		pool: pool,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO sessions (
			session_id, account_id, token,
			created_at, expires_at, last_used_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::inet
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ipAddress any
	if session.IPAddress != "" {
		ipAddress = session.IPAddress
	}

	lastUsedAt := session.LastUsedAt
	if lastUsedAt.IsZero() {
		lastUsedAt = session.CreatedAt
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.AccountID,
		session.Token,
		session.CreatedAt,
		session.ExpiresAt,
		lastUsedAt,
		session.UserAgent,
		ipAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("account_id", session.AccountID.String()).
		Msg("Created session")

	return nil
}

// GetByToken retrieves a live session by its token.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `
		SELECT
			session_id, account_id, token,
			created_at, expires_at, last_used_at,
			user_agent, host(ip_address)
		FROM sessions
		WHERE token = $1 AND expires_at > $2
	`

	var session models.Session
	var ipAddress *string
	err := s.pool.QueryRow(ctx, query, token, s.now()).Scan(
		&session.SessionID,
		&session.AccountID,
		&session.Token,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.UserAgent,
		&ipAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	if ipAddress != nil {
		session.IPAddress = *ipAddress
	}

	return &session, nil
}

// UpdateExpiry moves the expiry of a session and marks it used.
func (s *SessionStore) UpdateExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE sessions
		SET expires_at = $2, last_used_at = $3
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, expiresAt, s.now())
	if err != nil {
		return fmt.Errorf("failed to update session expiry: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Delete deletes a session by ID (sign out).
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Msg("Deleted session")

	return nil
}

// DeleteByTokens deletes the sessions holding any of tokens (sign out of all accounts).
func (s *SessionStore) DeleteByTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = ANY($1)`, tokens)
	if err != nil {
		return fmt.Errorf("failed to delete sessions by token: %w", mapPostgresError(err))
	}

	log.Debug().
		Int("tokens", len(tokens)).
		Int64("count", result.RowsAffected()).
		Msg("Deleted sessions by token")

	return nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.cfg.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	count := result.RowsAffected()
	if count > 0 {
		log.Info().
			Int64("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}
