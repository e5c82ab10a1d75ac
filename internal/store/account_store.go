package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
)

// AccountCriteria identifies an account by its Google subject and carries the
// profile fields to record when it is first seen or has changed.
type AccountCriteria struct {
	GoogleSubject string
	Email         string
	Name          string
	AvatarURL     string
}

// Validate checks the criteria can identify an account.
func (c AccountCriteria) Validate() error {
	if c.GoogleSubject == "" {
		return ErrInvalidAccountCriteria
	}
	return nil
}

// AccountStore persists account profiles.
type AccountStore interface {
	// Get retrieves an account by ID.
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)

	// FindOrCreate returns the account matching criteria, creating it on
	// first sign in and refreshing its profile fields otherwise.
	FindOrCreate(ctx context.Context, criteria AccountCriteria) (*models.Account, error)
}
