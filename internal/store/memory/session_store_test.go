package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

var _ store.SessionStore = (*SessionStore)(nil)

func newTestSession(t *testing.T, accountID uuid.UUID, expiresAt time.Time) *models.Session {
	t.Helper()

	sessionID, err := uuid.NewV7()
	require.NoError(t, err)
	token, err := store.NewSessionToken()
	require.NoError(t, err)

	return &models.Session{
		SessionID: sessionID,
		AccountID: accountID,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func TestSessionStore_CreateAndGetByToken(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	session := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, st.Create(ctx, session))

	got, err := st.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.SessionID, got.SessionID)
	require.Equal(t, session.AccountID, got.AccountID)

	got.ExpiresAt = time.Time{}
	again, err := st.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.False(t, again.ExpiresAt.IsZero(), "returned sessions are copies")

	_, err = st.GetByToken(ctx, "unknown")
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionStore_CreateDuplicateToken(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	first := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, st.Create(ctx, first))

	second := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	second.Token = first.Token
	require.ErrorIs(t, st.Create(ctx, second), store.ErrDuplicateToken)
	require.Equal(t, 1, st.Len())
}

func TestSessionStore_GetByTokenExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	st := NewSessionStore().WithClock(func() time.Time { return now })

	session := newTestSession(t, uuid.New(), now)
	require.NoError(t, st.Create(ctx, session))

	_, err := st.GetByToken(ctx, session.Token)
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionStore_UpdateExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	session := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, st.Create(ctx, session))

	next := time.Now().Add(48 * time.Hour).UTC()
	require.NoError(t, st.UpdateExpiry(ctx, session.SessionID, next))

	got, err := st.GetByToken(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, next, got.ExpiresAt)
	require.False(t, got.LastUsedAt.IsZero())

	err = st.UpdateExpiry(ctx, uuid.New(), next)
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	session := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, st.Create(ctx, session))

	require.NoError(t, st.Delete(ctx, session.SessionID))
	_, err := st.GetByToken(ctx, session.Token)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	require.ErrorIs(t, st.Delete(ctx, session.SessionID), store.ErrSessionNotFound)
}

func TestSessionStore_DeleteByTokens(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()

	s1 := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	s2 := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	s3 := newTestSession(t, uuid.New(), time.Now().Add(time.Hour))
	for _, s := range []*models.Session{s1, s2, s3} {
		require.NoError(t, st.Create(ctx, s))
	}

	require.NoError(t, st.DeleteByTokens(ctx, []string{s1.Token, s2.Token, "unknown"}))
	require.Equal(t, 1, st.Len())

	_, err := st.GetByToken(ctx, s3.Token)
	require.NoError(t, err)

	require.NoError(t, st.DeleteByTokens(ctx, nil))
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	st := NewSessionStore()
	now := time.Now()

	require.NoError(t, st.Create(ctx, newTestSession(t, uuid.New(), now.Add(-time.Minute))))
	require.NoError(t, st.Create(ctx, newTestSession(t, uuid.New(), now.Add(-time.Hour))))
	live := newTestSession(t, uuid.New(), now.Add(time.Hour))
	require.NoError(t, st.Create(ctx, live))

	deleted, err := st.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
	require.Equal(t, 1, st.Len())

	_, err = st.GetByToken(ctx, live.Token)
	require.NoError(t, err)
}
