package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
)

// SessionStore persists browser sessions.
type SessionStore interface {
	// Create stores a new session. The caller assigns the ID and token; a
	// token already held by another session fails with ErrDuplicateToken.
	Create(ctx context.Context, session *models.Session) error

	// GetByToken returns the live session holding token. Expired sessions are
	// reported as ErrSessionNotFound.
	GetByToken(ctx context.Context, token string) (*models.Session, error)

	// UpdateExpiry moves the expiry of a session. Last writer wins.
	UpdateExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error

	// Delete removes a single session (sign out).
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteByTokens removes every session holding one of tokens (sign out
	// of all accounts). Unknown tokens are ignored.
	DeleteByTokens(ctx context.Context, tokens []string) error

	// DeleteExpired removes sessions which expired before now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
