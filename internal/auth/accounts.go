package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/directory"
	"github.com/wolfeidau/multisession/internal/ident"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
	"github.com/wolfeidau/multisession/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SignOutAll is the sign out target removing every account in the directory.
const SignOutAll = "all"

const maxTokenAttempts = 3

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrSignInNotConfigured = errors.New("sign in is not configured")
	ErrMissingCredentials  = errors.New("missing credentials")
)

// Credentials are what the browser presents to sign in: either a Google ID
// token or an authorization code to exchange for one.
type Credentials struct {
	IDToken           string
	AuthorizationCode string
}

// Identity is a verified Google identity.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// CredentialVerifier verifies sign in credentials. Rejected credentials are
// reported wrapping ErrInvalidCredentials.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, creds Credentials) (*Identity, error)
}

// ClientInfo is audit metadata recorded on new sessions.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type SignInResult struct {
	Session   *models.Session
	Account   *models.Account
	Directory directory.Directory
	Headers   []string
}

type SignOutResult struct {
	SignedOut bool
	Directory directory.Directory
	Headers   []string
}

type SyncResult struct {
	Directory directory.Directory
	Headers   []string
}

// AccountEntry is one signed in account as shown in an account switcher.
type AccountEntry struct {
	AccountID string
	Account   *models.Account
	ExpiresAt time.Time
}

// SignIn verifies creds, creates a session for the matching account and adds
// it to a copy of dir.
func (r *Resolver) SignIn(ctx context.Context, dir directory.Directory, creds Credentials, client ClientInfo) (_ *SignInResult, err error) {
	ctx, span := tracer().Start(ctx, "auth.SignIn")
	defer func() { endSpan(span, err) }()

	if r.verifier == nil {
		return nil, ErrSignInNotConfigured
	}
	if creds.IDToken == "" && creds.AuthorizationCode == "" {
		return nil, ErrMissingCredentials
	}

	identity, err := r.verifier.VerifyCredentials(ctx, creds)
	if err != nil {
		telemetry.GetMetrics().CredentialVerifyErrorTotal.Add(ctx, 1)
		return nil, err
	}

	account, err := r.stores.Accounts.FindOrCreate(ctx, store.AccountCriteria{
		GoogleSubject: identity.Subject,
		Email:         identity.Email,
		Name:          identity.Name,
		AvatarURL:     identity.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find or create account: %w", err)
	}

	session, err := r.createSession(ctx, account.AccountID, client)
	if err != nil {
		return nil, err
	}

	updated := dir.Clone()
	updated.Set(ident.ToWire(account.AccountID), session.Token)

	telemetry.GetMetrics().SessionsCreatedTotal.Add(ctx, 1)
	zerolog.Ctx(ctx).Info().
		Str("account_id", account.AccountID.String()).
		Str("session_id", session.SessionID.String()).
		Int("accounts", updated.Len()).
		Msg("Signed in")

	return &SignInResult{
		Session:   session,
		Account:   account,
		Directory: updated,
		Headers:   updated.SetCookieHeaders(r.cookie),
	}, nil
}

func (r *Resolver) createSession(ctx context.Context, accountID uuid.UUID, client ClientInfo) (*models.Session, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := r.now().UTC()
	session := &models.Session{
		SessionID:  sessionID,
		AccountID:  accountID,
		CreatedAt:  now,
		ExpiresAt:  r.policy.NewExpiry(now),
		LastUsedAt: now,
		UserAgent:  client.UserAgent,
		IPAddress:  client.IPAddress,
	}

	for attempt := 1; ; attempt++ {
		session.Token, err = store.NewSessionToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session token: %w", err)
		}

		err = r.stores.Sessions.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, store.ErrDuplicateToken) || attempt == maxTokenAttempts {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		zerolog.Ctx(ctx).Warn().Int("attempt", attempt).Msg("Session token collision, regenerating")
	}
}

// SignOut removes target, an account identifier or SignOutAll, from the
// store and a copy of dir. Store failures are returned and leave dir as is.
func (r *Resolver) SignOut(ctx context.Context, dir directory.Directory, target string) (_ *SignOutResult, err error) {
	ctx, span := tracer().Start(ctx, "auth.SignOut",
		trace.WithAttributes(attribute.Bool("auth.sign_out_all", target == SignOutAll)))
	defer func() { endSpan(span, err) }()

	if target == SignOutAll {
		return r.signOutAll(ctx, dir)
	}

	token, ok := dir.Token(target)
	if !ok {
		return &SignOutResult{SignedOut: false, Directory: dir}, nil
	}

	session, err := r.stores.Sessions.GetByToken(ctx, token)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		// already gone from the store, only the cookie entry remains
	case err != nil:
		return nil, fmt.Errorf("failed to look up session: %w", err)
	case !ownedBy(session, target):
		// the entry carries another account's token, which stays live
		zerolog.Ctx(ctx).Warn().
			Str("account", target).
			Msg("Dropping directory entry holding a foreign session")
	default:
		if err := r.stores.Sessions.Delete(ctx, session.SessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		telemetry.GetMetrics().SessionsSignedOutTotal.Add(ctx, 1)
	}

	updated := dir.Clone()
	updated.Delete(target)

	zerolog.Ctx(ctx).Info().
		Str("account", target).
		Int("accounts", updated.Len()).
		Msg("Signed out")

	return &SignOutResult{
		SignedOut: true,
		Directory: updated,
		Headers:   updated.Headers(r.cookie),
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func ownedBy(session *models.Session, wireID string) bool {
	accountID, err := ident.FromWire(wireID)
	if err != nil {
		return false
	}
	return session.AccountID == accountID
}

func (r *Resolver) signOutAll(ctx context.Context, dir directory.Directory) (*SignOutResult, error) {
	tokens := dir.Tokens()
	if len(tokens) > 0 {
		if err := r.stores.Sessions.DeleteByTokens(ctx, tokens); err != nil {
			return nil, fmt.Errorf("failed to delete sessions: %w", err)
		}
		telemetry.GetMetrics().SessionsSignedOutTotal.Add(ctx, int64(len(tokens)))
	}

	zerolog.Ctx(ctx).Info().
		Int("accounts", len(tokens)).
		Msg("Signed out of all accounts")

	return &SignOutResult{
		SignedOut: true,
		Directory: directory.Directory{},
		Headers:   directory.ClearCookieHeaders(r.cookie),
	}, nil
}

// SwitchActiveAccount returns target when it is signed in, otherwise current.
// The active account is chosen per request by header, so nothing is written.
func SwitchActiveAccount(dir directory.Directory, current, target string) (string, bool) {
	if !dir.Has(target) {
		return current, false
	}
	return target, true
}

// SyncCookies prunes dir to the accounts the client still knows about.
func (r *Resolver) SyncCookies(dir directory.Directory, known []string) *SyncResult {
	filtered := dir.Filter(known)
	return &SyncResult{
		Directory: filtered,
		Headers:   filtered.Headers(r.cookie),
	}
}

// ListAccounts returns the accounts in dir whose sessions are still live.
// Dead or mismatched entries are skipped. It never refreshes expiry.
func (r *Resolver) ListAccounts(ctx context.Context, dir directory.Directory) ([]AccountEntry, error) {
	entries := make([]AccountEntry, 0, dir.Len())

	for _, wireID := range dir.AccountIDs() {
		accountID, err := ident.FromWire(wireID)
		if err != nil {
			continue
		}

		token, _ := dir.Token(wireID)
		session, err := r.stores.Sessions.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
		if session.AccountID != accountID {
			continue
		}

		account, err := r.stores.Accounts.Get(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to look up account: %w", err)
		}

		entries = append(entries, AccountEntry{
			AccountID: wireID,
			Account:   account,
			ExpiresAt: session.ExpiresAt,
		})
	}

	return entries, nil
}
