package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/auth"
	"github.com/wolfeidau/multisession/internal/directory"
	httpmiddleware "github.com/wolfeidau/multisession/internal/http"
	"github.com/wolfeidau/multisession/internal/ident"
	"github.com/wolfeidau/multisession/internal/models"
)

type handlers struct {
	resolver *auth.Resolver
	ready    func(r *http.Request) error
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func newAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:        ident.ToWire(a.AccountID),
		Email:     a.Email,
		Name:      a.Name,
		AvatarURL: a.AvatarURL,
	}
}

type signInRequest struct {
	Credential string `json:"credential"`
	Code       string `json:"code"`
}

type signInResponse struct {
	Account   accountResponse `json:"account"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (h *handlers) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.resolver.SignIn(ctx, directory.FromRequest(r),
		auth.Credentials{IDToken: req.Credential, AuthorizationCode: req.Code},
		auth.ClientInfo{UserAgent: r.UserAgent(), IPAddress: httpmiddleware.ClientIPFromContext(ctx)},
	)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "credential or code is required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "not authorized")
		return
	case errors.Is(err, auth.ErrSignInNotConfigured):
		writeError(w, http.StatusNotImplemented, "sign in is not configured")
		return
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("Sign in failed")
		auth.WriteUnavailable(w)
		return
	}

	setCookies(w, result.Headers)
	writeJSON(w, http.StatusOK, signInResponse{
		Account:   newAccountResponse(result.Account),
		ExpiresAt: result.Session.ExpiresAt,
	})
}

type signOutRequest struct {
	AccountID string `json:"accountId"`
	All       bool   `json:"all"`
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signOutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target := strings.TrimSpace(req.AccountID)
	if req.All {
		target = auth.SignOutAll
	}
	if target == "" {
		writeError(w, http.StatusBadRequest, "accountId or all is required")
		return
	}

	result, err := h.resolver.SignOut(ctx, directory.FromRequest(r), target)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Sign out failed")
		auth.WriteUnavailable(w)
		return
	}

	setCookies(w, result.Headers)
	writeJSON(w, http.StatusOK, map[string]bool{"signedOut": result.SignedOut})
}

type switchRequest struct {
	AccountID string `json:"accountId"`
}

type switchResponse struct {
	ActiveAccountID string `json:"activeAccountId"`
	Switched        bool   `json:"switched"`
}

func (h *handlers) switchAccount(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active, switched := auth.SwitchActiveAccount(
		directory.FromRequest(r),
		r.Header.Get(auth.HeaderActiveAccount),
		strings.TrimSpace(req.AccountID),
	)

	writeJSON(w, http.StatusOK, switchResponse{ActiveAccountID: active, Switched: switched})
}

type syncRequest struct {
	AccountIDs []string `json:"accountIds"`
}

type syncResponse struct {
	AccountIDs []string `json:"accountIds"`
}

func (h *handlers) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result := h.resolver.SyncCookies(directory.FromRequest(r), req.AccountIDs)

	setCookies(w, result.Headers)
	writeJSON(w, http.StatusOK, syncResponse{AccountIDs: result.Directory.AccountIDs()})
}

type meResponse struct {
	Account   accountResponse `json:"account"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	a, ok := auth.AuthenticatedFromContext(r.Context())
	if !ok {
		auth.WriteUnauthorized(w, auth.ReasonNoSession)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Account:   newAccountResponse(a.Account),
		ExpiresAt: a.Session.ExpiresAt,
	})
}

type accountListEntry struct {
	accountResponse
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.resolver.ListAccounts(ctx, directory.FromRequest(r))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list accounts")
		auth.WriteUnavailable(w)
		return
	}

	accounts := make([]accountListEntry, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, accountListEntry{
			accountResponse: newAccountResponse(e.Account),
			ExpiresAt:       e.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
