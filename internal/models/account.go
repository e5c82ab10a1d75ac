package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the profile of a person signed in with Google.
type Account struct {
	AccountID     uuid.UUID // UUIDv7
	GoogleSubject string    // Stable Google "sub" claim
	Email         string
	Name          string
	AvatarURL     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
