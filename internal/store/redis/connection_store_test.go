package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

var _ store.ConnectionStore = (*ConnectionStore)(nil)

func newTestStore(t *testing.T) (*ConnectionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewConnectionStore(client, "test:conn:"), mr
}

func TestConnectionStore_PutGet(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)

	conn := &models.Connection{
		ConnectionID: uuid.New(),
		Auth:         json.RawMessage(`{"status":"unauthenticated","reason":"NO_SESSION"}`),
		ConnectedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.Put(ctx, conn, time.Hour))
	require.True(t, mr.Exists("test:conn:"+conn.ConnectionID.String()))

	got, ttl, err := st.Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, conn.ConnectionID, got.ConnectionID)
	require.True(t, conn.ConnectedAt.Equal(got.ConnectedAt))
	require.JSONEq(t, string(conn.Auth), string(got.Auth))
	require.Equal(t, time.Hour, ttl)
}

func TestConnectionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)

	conn := &models.Connection{ConnectionID: uuid.New(), Auth: json.RawMessage(`{}`), ConnectedAt: time.Now()}
	require.NoError(t, st.Put(ctx, conn, time.Hour))

	mr.FastForward(45 * time.Minute)
	_, ttl, err := st.Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, ttl)

	require.NoError(t, st.Expire(ctx, conn.ConnectionID, time.Hour))
	_, ttl, err = st.Get(ctx, conn.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, time.Hour, ttl)

	mr.FastForward(time.Hour)
	_, _, err = st.Get(ctx, conn.ConnectionID)
	require.ErrorIs(t, err, store.ErrConnectionNotFound)

	require.ErrorIs(t, st.Expire(ctx, conn.ConnectionID, time.Hour), store.ErrConnectionNotFound)
}

func TestConnectionStore_Delete(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	conn := &models.Connection{ConnectionID: uuid.New(), Auth: json.RawMessage(`{}`), ConnectedAt: time.Now()}
	require.NoError(t, st.Put(ctx, conn, time.Hour))
	require.NoError(t, st.Delete(ctx, conn.ConnectionID))
	require.NoError(t, st.Delete(ctx, conn.ConnectionID))

	_, _, err := st.Get(ctx, conn.ConnectionID)
	require.ErrorIs(t, err, store.ErrConnectionNotFound)
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := NewClient(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = NewClient(ctx, Config{})
	require.Error(t, err)
}
