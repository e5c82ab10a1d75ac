package store

import (
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidAccountCriteria = errors.New("invalid account criteria")
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrDuplicateToken         = errors.New("session token already in use")
)

// IsNotFound reports whether err is one of the not found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrConnectionNotFound)
}
