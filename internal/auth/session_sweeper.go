package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/multisession/internal/store"
	"github.com/wolfeidau/multisession/internal/telemetry"
)

// SessionSweeper periodically deletes expired sessions so the store does not
// grow with abandoned logins.
type SessionSweeper struct {
	sessions store.SessionStore
	interval time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionSweeper creates a sweeper that runs every interval.
// The sweeper starts a background goroutine that runs until Stop() is called.
func NewSessionSweeper(ctx context.Context, sessions store.SessionStore, interval time.Duration) *SessionSweeper {
	sweeperCtx, cancel := context.WithCancel(ctx)

	ss := &SessionSweeper{
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		ctx:      sweeperCtx,
		cancel:   cancel,
	}

	ss.wg.Add(1)
	go ss.sweepLoop()

	return ss
}

// Stop gracefully stops the background sweep goroutine.
func (ss *SessionSweeper) Stop() {
	ss.cancel()
	ss.wg.Wait()
}

func (ss *SessionSweeper) sweepLoop() {
	defer ss.wg.Done()

	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ss.ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return

		case <-ticker.C:
			if _, err := ss.Sweep(ss.ctx); err != nil {
				log.Error().Err(err).Msg("Failed to sweep expired sessions")
			}
		}
	}
}

// Sweep deletes sessions expired as of now and returns how many were removed.
func (ss *SessionSweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := ss.sessions.DeleteExpired(ctx, ss.now())
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		telemetry.GetMetrics().SessionSweepDeletedTotal.Add(ctx, deleted)
	}
	log.Debug().Int64("deleted", deleted).Msg("Swept expired sessions")

	return deleted, nil
}
