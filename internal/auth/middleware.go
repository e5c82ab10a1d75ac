package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// HeaderAuthReason carries the FailureReason on 401 responses so clients can
// decide between prompting for sign in and switching accounts.
const HeaderAuthReason = "X-Auth-Reason"

type contextKey string

const authenticatedContextKey contextKey = "authenticated"

// WithAuthenticated returns a copy of ctx carrying a.
func WithAuthenticated(ctx context.Context, a Authenticated) context.Context {
	return context.WithValue(ctx, authenticatedContextKey, a)
}

// AuthenticatedFromContext returns the value stored by RequireAuth.
func AuthenticatedFromContext(ctx context.Context) (Authenticated, bool) {
	a, ok := ctx.Value(authenticatedContextKey).(Authenticated)
	return a, ok
}

// WriteUnauthorized writes the generic 401 response. The body never varies
// with the reason.
func WriteUnauthorized(w http.ResponseWriter, reason FailureReason) {
	w.Header().Set(HeaderAuthReason, string(reason))
	writeError(w, http.StatusUnauthorized, "not authorized")
}

// WriteUnavailable writes the response used when a store cannot be reached.
func WriteUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "service unavailable")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequireAuth creates an HTTP middleware that resolves the request and only
// calls next for authenticated requests.
func RequireAuth(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ac, err := resolver.Resolve(ctx, r.Header)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to resolve session")
				WriteUnavailable(w)
				return
			}

			switch v := ac.(type) {
			case Authenticated:
				zerolog.Ctx(ctx).Debug().
					Str("account_id", v.Account.AccountID.String()).
					Msg("Session auth: authenticated")
				next.ServeHTTP(w, r.WithContext(WithAuthenticated(ctx, v)))
			case Unauthenticated:
				zerolog.Ctx(ctx).Debug().
					Str("reason", string(v.Reason)).
					Msg("Session auth: not authenticated")
				WriteUnauthorized(w, v.Reason)
			}
		})
	}
}
