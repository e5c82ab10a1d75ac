package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name      string
		duration  time.Duration
		threshold float64
		wantErr   bool
	}{
		{name: "valid", duration: time.Hour, threshold: 0.5},
		{name: "threshold of one", duration: time.Hour, threshold: 1},
		{name: "zero duration", duration: 0, threshold: 0.5, wantErr: true},
		{name: "negative duration", duration: -time.Second, threshold: 0.5, wantErr: true},
		{name: "zero threshold", duration: time.Hour, threshold: 0, wantErr: true},
		{name: "threshold above one", duration: time.Hour, threshold: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.duration, tt.threshold)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.duration, p.Duration)
			require.Equal(t, tt.threshold, p.RefreshThreshold)
		})
	}
}

func TestPolicy_NewExpiry(t *testing.T) {
	p := MustPolicy(1000*time.Second, 0.5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, now.Add(1000*time.Second), p.NewExpiry(now))
}

func TestPolicy_ShouldRefreshBoundary(t *testing.T) {
	p := MustPolicy(1000*time.Second, 0.5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.False(t, p.ShouldRefresh(now.Add(501*time.Second), now))
	require.True(t, p.ShouldRefresh(now.Add(500*time.Second), now))
	require.True(t, p.ShouldRefresh(now.Add(-time.Second), now), "already expired records are due")
}

func TestPolicy_TryRefresh(t *testing.T) {
	p := MustPolicy(DefaultSessionDuration, DefaultSessionThreshold)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("created eight days ago is refreshed", func(t *testing.T) {
		expiresAt := p.NewExpiry(now.Add(-8 * 24 * time.Hour))

		next, changed := p.TryRefresh(expiresAt, now)
		require.True(t, changed)
		require.Equal(t, now.Add(DefaultSessionDuration), next)
	})

	t.Run("created yesterday is left alone", func(t *testing.T) {
		expiresAt := p.NewExpiry(now.Add(-24 * time.Hour))

		next, changed := p.TryRefresh(expiresAt, now)
		require.False(t, changed)
		require.Equal(t, expiresAt, next)
	})
}

func TestPolicy_TryRefreshMonotonic(t *testing.T) {
	p := MustPolicy(1000*time.Second, 0.5)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, offset := range []int{0, 100, 499, 500, 501, 900, 1000, 1500} {
		expiresAt := base.Add(time.Duration(offset) * time.Second)
		for step := 0; step <= 1200; step += 50 {
			now1 := base.Add(time.Duration(step) * time.Second)
			now2 := now1.Add(75 * time.Second)

			first, _ := p.TryRefresh(expiresAt, now1)
			require.False(t, first.Before(expiresAt), "refresh must never shorten a record")

			twice, _ := p.TryRefresh(first, now2)
			once, _ := p.TryRefresh(expiresAt, now2)
			require.False(t, twice.Before(once), "offset=%d step=%d", offset, step)
		}
	}
}

func TestPolicy_TryRefreshTTL(t *testing.T) {
	p := MustPolicy(DefaultConnectionDuration, DefaultConnectionThreshold)

	require.Equal(t, DefaultConnectionDuration, p.DefaultTTL())

	ttl, changed := p.TryRefreshTTL(3*time.Hour + time.Second)
	require.False(t, changed)
	require.Equal(t, 3*time.Hour+time.Second, ttl)

	ttl, changed = p.TryRefreshTTL(3 * time.Hour)
	require.True(t, changed)
	require.Equal(t, DefaultConnectionDuration, ttl)
}

func TestPolicy_TTLAgreesWithExpiry(t *testing.T) {
	p := MustPolicy(1000*time.Second, 0.5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, remaining := range []time.Duration{0, 250 * time.Second, 500 * time.Second, 501 * time.Second, 1000 * time.Second} {
		_, byTTL := p.TryRefreshTTL(remaining)
		_, byExpiry := p.TryRefresh(now.Add(remaining), now)
		require.Equal(t, byExpiry, byTTL, "remaining=%s", remaining)
	}
}
