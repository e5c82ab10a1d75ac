package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/multisession/internal/ident"
	"github.com/wolfeidau/multisession/internal/models"
)

var ErrInvalidContext = errors.New("invalid serialized authentication context")

const (
	statusAuthenticated   = "authenticated"
	statusUnauthenticated = "unauthenticated"
)

// SerializedContext is an AuthenticationContext with every identifier in its
// wire form, so it can be stored outside the process.
type SerializedContext struct {
	Status  string             `json:"status"`
	Session *SerializedSession `json:"session,omitempty"`
	Account *SerializedAccount `json:"account,omitempty"`
	Reason  FailureReason      `json:"reason,omitempty"`
}

type SerializedSession struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Token      string    `json:"token"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	UserAgent  string    `json:"userAgent,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
}

type SerializedAccount struct {
	ID            string    `json:"id"`
	GoogleSubject string    `json:"googleSubject"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Serialize converts ac into its persistable form.
func Serialize(ac AuthenticationContext) SerializedContext {
	switch v := ac.(type) {
	case Authenticated:
		return SerializedContext{
			Status:  statusAuthenticated,
			Session: serializeSession(v.Session),
			Account: serializeAccount(v.Account),
		}
	case Unauthenticated:
		return SerializedContext{Status: statusUnauthenticated, Reason: v.Reason}
	default:
		return SerializedContext{}
	}
}

// Parse is the inverse of Serialize.
func Parse(sc SerializedContext) (AuthenticationContext, error) {
	switch sc.Status {
	case statusAuthenticated:
		if sc.Session == nil || sc.Account == nil {
			return nil, fmt.Errorf("%w: authenticated context without session or account", ErrInvalidContext)
		}
		session, err := parseSession(sc.Session)
		if err != nil {
			return nil, err
		}
		account, err := parseAccount(sc.Account)
		if err != nil {
			return nil, err
		}
		return Authenticated{Session: session, Account: account}, nil

	case statusUnauthenticated:
		if !sc.Reason.Valid() {
			return nil, fmt.Errorf("%w: unknown reason %q", ErrInvalidContext, sc.Reason)
		}
		return Unauthenticated{Reason: sc.Reason}, nil

	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidContext, sc.Status)
	}
}

// Marshal serializes ac to JSON.
func Marshal(ac AuthenticationContext) ([]byte, error) {
	return json.Marshal(Serialize(ac))
}

// Unmarshal parses JSON produced by Marshal.
func Unmarshal(data []byte) (AuthenticationContext, error) {
	var sc SerializedContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}
	return Parse(sc)
}

func serializeSession(s *models.Session) *SerializedSession {
	if s == nil {
		return nil
	}
	return &SerializedSession{
		ID:         ident.ToWire(s.SessionID),
		AccountID:  ident.ToWire(s.AccountID),
		Token:      s.Token,
		CreatedAt:  s.CreatedAt.UTC(),
		ExpiresAt:  s.ExpiresAt.UTC(),
		LastUsedAt: s.LastUsedAt.UTC(),
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
	}
}

func parseSession(s *SerializedSession) (*models.Session, error) {
	sessionID, err := ident.FromWire(s.ID)
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	accountID, err := ident.FromWire(s.AccountID)
	if err != nil {
		return nil, fmt.Errorf("session account id: %w", err)
	}
	return &models.Session{
		SessionID:  sessionID,
		AccountID:  accountID,
		Token:      s.Token,
		CreatedAt:  s.CreatedAt.UTC(),
		ExpiresAt:  s.ExpiresAt.UTC(),
		LastUsedAt: s.LastUsedAt.UTC(),
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
	}, nil
}

func serializeAccount(a *models.Account) *SerializedAccount {
	if a == nil {
		return nil
	}
	return &SerializedAccount{
		ID:            ident.ToWire(a.AccountID),
		GoogleSubject: a.GoogleSubject,
		Email:         a.Email,
		Name:          a.Name,
		AvatarURL:     a.AvatarURL,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

func parseAccount(a *SerializedAccount) (*models.Account, error) {
	accountID, err := ident.FromWire(a.ID)
	if err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}
	return &models.Account{
		AccountID:     accountID,
		GoogleSubject: a.GoogleSubject,
		Email:         a.Email,
		Name:          a.Name,
		AvatarURL:     a.AvatarURL,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}, nil
}
