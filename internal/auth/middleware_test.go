package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/directory"
)

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	aliceID, alice := env.seedSession(t, "alice", env.now)
	dir := directory.Directory{aliceID: alice.Token}

	handler := RequireAuth(env.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := AuthenticatedFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(a.Account.Name))
	}))

	serve := func(h http.Header) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		r.Header = h
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("authenticated", func(t *testing.T) {
		w := serve(requestHeaders(dir, aliceID))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "alice", w.Body.String())
	})

	t.Run("no active account", func(t *testing.T) {
		w := serve(requestHeaders(dir, ""))
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, string(ReasonAccountUndefined), w.Header().Get(HeaderAuthReason))
		require.JSONEq(t, `{"error":"not authorized"}`, w.Body.String())
	})

	t.Run("body does not vary with reason", func(t *testing.T) {
		w := serve(requestHeaders(nil, ""))
		require.Equal(t, string(ReasonNoSession), w.Header().Get(HeaderAuthReason))
		require.JSONEq(t, `{"error":"not authorized"}`, w.Body.String())
	})

	t.Run("store unavailable", func(t *testing.T) {
		env.sessions.getErr = errStoreDown
		defer func() { env.sessions.getErr = nil }()

		w := serve(requestHeaders(dir, aliceID))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	_, ok := AuthenticatedFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}
