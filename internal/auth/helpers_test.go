package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/directory"
	"github.com/wolfeidau/multisession/internal/expiry"
	"github.com/wolfeidau/multisession/internal/ident"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
	"github.com/wolfeidau/multisession/internal/store/memory"
)

var errStoreDown = errors.New("connection refused")

// recordingSessionStore wraps a session store, counting writes and injecting
// failures.
type recordingSessionStore struct {
	store.SessionStore

	mu        sync.Mutex
	updates   int
	createErr []error
	getErr    error
	updateErr error
	deleteErr error
}

// Create fails with the queued createErr values, one per call, before
// reaching the wrapped store.
func (s *recordingSessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	if len(s.createErr) > 0 {
		err := s.createErr[0]
		s.createErr = s.createErr[1:]
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	return s.SessionStore.Create(ctx, session)
}

func (s *recordingSessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.SessionStore.GetByToken(ctx, token)
}

func (s *recordingSessionStore) UpdateExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	return s.SessionStore.UpdateExpiry(ctx, sessionID, expiresAt)
}

func (s *recordingSessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.SessionStore.Delete(ctx, sessionID)
}

func (s *recordingSessionStore) DeleteByTokens(ctx context.Context, tokens []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.SessionStore.DeleteByTokens(ctx, tokens)
}

func (s *recordingSessionStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// fakeVerifier accepts ID tokens of the form "valid:<subject>".
type fakeVerifier struct{}

func (fakeVerifier) VerifyCredentials(ctx context.Context, creds Credentials) (*Identity, error) {
	var subject string
	if _, err := fmt.Sscanf(creds.IDToken, "valid:%s", &subject); err != nil {
		return nil, fmt.Errorf("%w: bad token", ErrInvalidCredentials)
	}
	return &Identity{
		Subject: subject,
		Email:   subject + "@example.com",
		Name:    "User " + subject,
	}, nil
}

type testEnv struct {
	now      time.Time
	sessions *recordingSessionStore
	accounts *memory.AccountStore
	resolver *Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		now:      time.Now().UTC(),
		sessions: &recordingSessionStore{SessionStore: memory.NewSessionStore()},
		accounts: memory.NewAccountStore(),
	}
	env.resolver = NewResolver(Stores{Sessions: env.sessions, Accounts: env.accounts}, Config{
		SessionPolicy: expiry.MustPolicy(expiry.DefaultSessionDuration, expiry.DefaultSessionThreshold),
		Cookie:        directory.CookieOptions{Secure: true},
		Verifier:      fakeVerifier{},
		Now:           func() time.Time { return env.now },
	})
	return env
}

// seedSession stores an account with a session created at createdAt.
func (env *testEnv) seedSession(t *testing.T, subject string, createdAt time.Time) (string, *models.Session) {
	t.Helper()
	ctx := context.Background()

	account, err := env.accounts.FindOrCreate(ctx, store.AccountCriteria{GoogleSubject: subject, Name: subject})
	require.NoError(t, err)

	token, err := store.NewSessionToken()
	require.NoError(t, err)

	session := &models.Session{
		SessionID:  uuid.New(),
		AccountID:  account.AccountID,
		Token:      token,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(expiry.DefaultSessionDuration),
		LastUsedAt: createdAt,
	}
	require.NoError(t, env.sessions.Create(ctx, session))

	return ident.ToWire(account.AccountID), session
}

func requestHeaders(dir directory.Directory, activeAccount string) http.Header {
	h := http.Header{}
	if dir != nil {
		h.Set("Cookie", directory.CookieName+"="+dir.Encode())
	}
	if activeAccount != "" {
		h.Set(HeaderActiveAccount, activeAccount)
	}
	return h
}
