package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one sign in of an account from a browser.
// The token is the only value carried in the directory cookie.
type Session struct {
	SessionID uuid.UUID // UUIDv7
	AccountID uuid.UUID // Owning account
	Token     string    `json:"-"` // Opaque, never written into a response body

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired returns true if the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
