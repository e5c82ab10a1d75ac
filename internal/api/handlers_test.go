package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/auth"
	"github.com/wolfeidau/multisession/internal/directory"
	"github.com/wolfeidau/multisession/internal/expiry"
	"github.com/wolfeidau/multisession/internal/store/memory"
)

const allowedOrigin = "https://app.example.com"

// stubVerifier accepts ID tokens of the form "valid:<subject>".
type stubVerifier struct{}

func (stubVerifier) VerifyCredentials(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	subject, ok := strings.CutPrefix(creds.IDToken, "valid:")
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Identity{Subject: subject, Email: subject + "@example.com", Name: subject}, nil
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookie  string
}

func newClient(t *testing.T, cfg Config) *client {
	t.Helper()

	resolver := auth.NewResolver(auth.Stores{
		Sessions: memory.NewSessionStore(),
		Accounts: memory.NewAccountStore(),
	}, auth.Config{
		SessionPolicy: expiry.MustPolicy(expiry.DefaultSessionDuration, expiry.DefaultSessionThreshold),
		Verifier:      stubVerifier{},
	})
	t.Cleanup(resolver.Wait)

	handler, err := NewHandler(resolver, cfg, zerolog.Nop())
	require.NoError(t, err)

	return &client{t: t, handler: handler}
}

// do sends a request carrying the current cookie and keeps any cookie the
// response sets.
func (c *client) do(method, path, body, activeAccount string, header ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		r.Header.Set("Cookie", directory.CookieName+"="+c.cookie)
	}
	if activeAccount != "" {
		r.Header.Set(auth.HeaderActiveAccount, activeAccount)
	}
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, r)

	for _, sc := range w.Header().Values("Set-Cookie") {
		pair, _, _ := strings.Cut(sc, ";")
		value, ok := strings.CutPrefix(pair, directory.CookieName+"=")
		require.True(c.t, ok, sc)
		c.cookie = value
	}

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (c *client) signIn(subject string) string {
	c.t.Helper()

	w := c.do(http.MethodPost, "/auth/google", `{"credential":"valid:`+subject+`"}`, "")
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[signInResponse](c.t, w)
	require.Equal(c.t, subject+"@example.com", resp.Account.Email)
	return resp.Account.ID
}

func TestMultipleAccounts(t *testing.T) {
	c := newClient(t, Config{})

	alice := c.signIn("alice")
	bob := c.signIn("bob")
	require.ElementsMatch(t, []string{alice, bob}, directory.Decode(c.cookie).AccountIDs())

	t.Run("me as each account", func(t *testing.T) {
		for _, id := range []string{alice, bob} {
			w := c.do(http.MethodGet, "/auth/me", "", id)
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, id, decode[meResponse](t, w).Account.ID)
		}
	})

	t.Run("accounts lists both", func(t *testing.T) {
		w := c.do(http.MethodGet, "/auth/accounts", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[struct {
			Accounts []accountListEntry `json:"accounts"`
		}](t, w)
		require.Len(t, resp.Accounts, 2)
	})

	t.Run("switch", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/switch", `{"accountId":"`+bob+`"}`, alice)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, switchResponse{ActiveAccountID: bob, Switched: true}, decode[switchResponse](t, w))
		require.Empty(t, w.Header().Values("Set-Cookie"))

		w = c.do(http.MethodPost, "/auth/switch", `{"accountId":"nobody"}`, alice)
		require.Equal(t, switchResponse{ActiveAccountID: alice, Switched: false}, decode[switchResponse](t, w))
	})

	t.Run("sign out one account", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/sign-out", `{"accountId":"`+alice+`"}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, map[string]bool{"signedOut": true}, decode[map[string]bool](t, w))
		require.Equal(t, []string{bob}, directory.Decode(c.cookie).AccountIDs())

		w = c.do(http.MethodGet, "/auth/me", "", alice)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, string(auth.ReasonNoSession), w.Header().Get(auth.HeaderAuthReason))

		w = c.do(http.MethodGet, "/auth/me", "", bob)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("sign out an absent account", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/sign-out", `{"accountId":"`+alice+`"}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, map[string]bool{"signedOut": false}, decode[map[string]bool](t, w))
		require.Empty(t, w.Header().Values("Set-Cookie"))
	})

	t.Run("sync to nothing clears the cookie", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/sync", `{"accountIds":[]}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, syncResponse{AccountIDs: []string{}}, decode[syncResponse](t, w))
		require.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
		require.Empty(t, c.cookie)
	})
}

func TestSignOutAll(t *testing.T) {
	c := newClient(t, Config{})
	alice := c.signIn("alice")
	c.signIn("bob")

	w := c.do(http.MethodPost, "/auth/sign-out", `{"all":true}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")

	w = c.do(http.MethodGet, "/auth/me", "", alice)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignInErrors(t *testing.T) {
	c := newClient(t, Config{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "rejected credential", body: `{"credential":"forged"}`, code: http.StatusUnauthorized},
		{name: "missing credential", body: `{}`, code: http.StatusBadRequest},
		{name: "malformed body", body: `{`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := c.do(http.MethodPost, "/auth/google", tt.body, "")
			require.Equal(t, tt.code, w.Code)
			require.Empty(t, w.Header().Values("Set-Cookie"))
		})
	}
}

func TestSignOutRequiresTarget(t *testing.T) {
	c := newClient(t, Config{})

	w := c.do(http.MethodPost, "/auth/sign-out", `{}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeUnauthorized(t *testing.T) {
	c := newClient(t, Config{})
	c.signIn("alice")

	w := c.do(http.MethodGet, "/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, string(auth.ReasonAccountUndefined), w.Header().Get(auth.HeaderAuthReason))
	require.JSONEq(t, `{"error":"not authorized"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	c := newClient(t, Config{})
	w := c.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	c = newClient(t, Config{Ready: func(*http.Request) error { return errors.New("db down") }})
	w = c.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCrossOrigin(t *testing.T) {
	c := newClient(t, Config{AllowedOrigins: []string{allowedOrigin}})

	t.Run("preflight from an allowed origin", func(t *testing.T) {
		w := c.do(http.MethodOptions, "/auth/switch", "", "",
			"Origin", allowedOrigin,
			"Access-Control-Request-Method", http.MethodPost,
			"Access-Control-Request-Headers", "content-type,x-account-id",
		)
		require.Equal(t, allowedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("credentialed request from an allowed origin", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/google", `{"credential":"valid:alice"}`, "",
			"Origin", allowedOrigin,
			"Sec-Fetch-Site", "same-site",
		)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, allowedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("cross site form post is rejected", func(t *testing.T) {
		w := c.do(http.MethodPost, "/auth/sign-out", `{"all":true}`, "",
			"Origin", "https://evil.example.com",
			"Sec-Fetch-Site", "cross-site",
		)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestNoCORSWithoutAllowedOrigins(t *testing.T) {
	c := newClient(t, Config{})

	w := c.do(http.MethodGet, "/healthz", "", "", "Origin", "https://evil.example.com")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
