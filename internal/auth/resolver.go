package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/directory"
	"github.com/wolfeidau/multisession/internal/expiry"
	"github.com/wolfeidau/multisession/internal/ident"
	"github.com/wolfeidau/multisession/internal/store"
	"github.com/wolfeidau/multisession/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// HeaderActiveAccount names the account a request operates as. It must hold
// a wire account identifier present in the directory cookie.
const HeaderActiveAccount = "X-Account-ID"

const (
	defaultRefreshTimeout = 5 * time.Second
	tracerName            = "github.com/wolfeidau/multisession/internal/auth"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Stores groups the stores the resolver depends on.
type Stores struct {
	Sessions store.SessionStore
	Accounts store.AccountStore
}

// Config configures a Resolver.
type Config struct {
	// SessionPolicy decides when sessions are issued and refreshed.
	SessionPolicy expiry.Policy

	// Cookie controls the attributes of emitted directory cookies. Leaving
	// MaxAge unset emits a browser session cookie, so the cookie is not
	// dropped while the stored session keeps sliding forward.
	Cookie directory.CookieOptions

	// Verifier checks sign in credentials. Sign in fails without one.
	Verifier CredentialVerifier

	// RefreshTimeout bounds the background expiry write. Default: 5s
	RefreshTimeout time.Duration

	// Now is the clock, defaulting to time.Now.
	Now func() time.Time
}

// Resolver turns request headers into an AuthenticationContext and performs
// the account operations which change the directory cookie.
type Resolver struct {
	stores         Stores
	policy         expiry.Policy
	cookie         directory.CookieOptions
	verifier       CredentialVerifier
	refreshTimeout time.Duration
	now            func() time.Time

	// tracks in-flight refresh writes
	wg sync.WaitGroup
}

// NewResolver creates a resolver over stores.
func NewResolver(stores Stores, cfg Config) *Resolver {
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Resolver{
		stores:         stores,
		policy:         cfg.SessionPolicy,
		cookie:         cfg.Cookie,
		verifier:       cfg.Verifier,
		refreshTimeout: cfg.RefreshTimeout,
		now:            cfg.Now,
	}
}

// CookieOptions returns the cookie attributes used for emitted headers.
func (r *Resolver) CookieOptions() directory.CookieOptions {
	return r.cookie
}

// Resolve authenticates a request from its Cookie and active account headers.
//
// Every failure to find a usable session becomes Unauthenticated. An error is
// only returned when a store could not be reached.
func (r *Resolver) Resolve(ctx context.Context, headers http.Header) (AuthenticationContext, error) {
	ctx, span := tracer().Start(ctx, "auth.Resolve")
	defer span.End()

	ac, err := r.resolve(ctx, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		return nil, err
	}

	result := outcome(ac)
	span.SetAttributes(attribute.String("auth.outcome", result))
	telemetry.GetMetrics().ResolveTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", result)))

	return ac, nil
}

func (r *Resolver) resolve(ctx context.Context, headers http.Header) (AuthenticationContext, error) {
	dir := directory.FromHeader(headers)
	if dir.Len() == 0 {
		return unauthenticated(ReasonNoSession), nil
	}

	activeID := strings.TrimSpace(headers.Get(HeaderActiveAccount))
	if activeID == "" {
		return unauthenticated(ReasonAccountUndefined), nil
	}

	token, ok := dir.Token(activeID)
	if !ok {
		return unauthenticated(ReasonNoSession), nil
	}

	accountID, err := ident.FromWire(activeID)
	if err != nil {
		return unauthenticated(ReasonInvalidIdentifier), nil
	}

	session, err := r.stores.Sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return unauthenticated(ReasonSessionExpired), nil
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	// the entry pairs this account with another account's token
	if session.AccountID != accountID {
		return unauthenticated(ReasonInvalidDirectoryEntry), nil
	}

	account, err := r.stores.Accounts.Get(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return unauthenticated(ReasonSessionExpired), nil
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	now := r.now()
	if next, changed := r.policy.TryRefresh(session.ExpiresAt, now); changed {
		session.ExpiresAt = next
		session.LastUsedAt = now
		r.refreshExpiry(ctx, session.SessionID, next)
	}

	return Authenticated{Session: session, Account: account}, nil
}

// refreshExpiry writes the new expiry without holding up the response. A
// failed write only means the session expires sooner, so it is logged.
func (r *Resolver) refreshExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) {
	logger := zerolog.Ctx(ctx)
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, r.refreshTimeout)
		defer cancel()

		metrics := telemetry.GetMetrics()
		if err := r.stores.Sessions.UpdateExpiry(ctx, sessionID, expiresAt); err != nil {
			metrics.SessionRefreshErrorsTotal.Add(ctx, 1)
			logger.Warn().Err(err).
				Str("session_id", sessionID.String()).
				Msg("Failed to refresh session expiry")
			return
		}

		metrics.SessionRefreshTotal.Add(ctx, 1)
		logger.Debug().
			Str("session_id", sessionID.String()).
			Time("expires_at", expiresAt).
			Msg("Refreshed session expiry")
	}()
}

// Wait blocks until background expiry writes have finished.
func (r *Resolver) Wait() {
	r.wg.Wait()
}
