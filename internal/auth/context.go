package auth

import (
	"github.com/wolfeidau/multisession/internal/models"
)

// FailureReason explains why a request is not authenticated. It is intended
// for diagnostics and client UX, never for telling callers which accounts exist.
type FailureReason string

const (
	ReasonAccountUndefined      FailureReason = "ACCOUNT_UNDEFINED"
	ReasonNoSession             FailureReason = "NO_SESSION"
	ReasonSessionExpired        FailureReason = "SESSION_EXPIRED"
	ReasonInvalidDirectoryEntry FailureReason = "INVALID_DIRECTORY_ENTRY"
	ReasonInvalidIdentifier     FailureReason = "INVALID_IDENTIFIER"
)

// Valid reports whether r is one of the known reasons.
func (r FailureReason) Valid() bool {
	switch r {
	case ReasonAccountUndefined, ReasonNoSession, ReasonSessionExpired,
		ReasonInvalidDirectoryEntry, ReasonInvalidIdentifier:
		return true
	}
	return false
}

// AuthenticationContext is the outcome of resolving a request. It is either
// Authenticated or Unauthenticated; callers branch with a type switch.
type AuthenticationContext interface {
	authenticationContext()
}

// Authenticated carries the live session and its owning account.
type Authenticated struct {
	Session *models.Session
	Account *models.Account
}

// Unauthenticated carries the reason no session could be used.
type Unauthenticated struct {
	Reason FailureReason
}

func (Authenticated) authenticationContext()   {}
func (Unauthenticated) authenticationContext() {}

func unauthenticated(reason FailureReason) AuthenticationContext {
	return Unauthenticated{Reason: reason}
}

// outcome is the metric label for a resolution result.
func outcome(ac AuthenticationContext) string {
	switch v := ac.(type) {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return string(v.Reason)
	default:
		return "unknown"
	}
}
