package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/multisession/internal/store"
)

var _ store.AccountStore = (*AccountStore)(nil)

func TestAccountStore_FindOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates on first sign in", func(t *testing.T) {
		st := NewAccountStore()

		account, err := st.FindOrCreate(ctx, store.AccountCriteria{
			GoogleSubject: "10769150350006150715113082367",
			Email:         "jane@example.com",
			Name:          "Jane Doe",
		})
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, account.AccountID)
		require.Equal(t, "jane@example.com", account.Email)
		require.Equal(t, "Jane Doe", account.Name)

		got, err := st.Get(ctx, account.AccountID)
		require.NoError(t, err)
		require.Equal(t, account, got)
	})

	t.Run("returns existing account and refreshes profile", func(t *testing.T) {
		st := NewAccountStore()

		first, err := st.FindOrCreate(ctx, store.AccountCriteria{GoogleSubject: "sub-1", Name: "Jane"})
		require.NoError(t, err)

		second, err := st.FindOrCreate(ctx, store.AccountCriteria{GoogleSubject: "sub-1", Name: "Jane Doe", AvatarURL: "https://example.com/a.png"})
		require.NoError(t, err)
		require.Equal(t, first.AccountID, second.AccountID)
		require.Equal(t, "Jane Doe", second.Name)
		require.Equal(t, "https://example.com/a.png", second.AvatarURL)
	})

	t.Run("rejects criteria without subject", func(t *testing.T) {
		st := NewAccountStore()

		_, err := st.FindOrCreate(ctx, store.AccountCriteria{Email: "jane@example.com"})
		require.ErrorIs(t, err, store.ErrInvalidAccountCriteria)
	})
}

func TestAccountStore_GetMissing(t *testing.T) {
	st := NewAccountStore()

	_, err := st.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrAccountNotFound)
}
