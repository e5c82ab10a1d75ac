// Package connections tracks live websocket connections in a TTL indexed
// store, keeping each record alive with the same sliding expiration rules
// used for sessions.
package connections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/auth"
	"github.com/wolfeidau/multisession/internal/expiry"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
	"github.com/wolfeidau/multisession/internal/telemetry"
)

// Registry records which authentication context each live connection was
// opened with.
type Registry struct {
	store  store.ConnectionStore
	policy expiry.Policy
	now    func() time.Time
}

// NewRegistry creates a registry over connStore using policy for record TTLs.
func NewRegistry(connStore store.ConnectionStore, policy expiry.Policy) *Registry {
	return &Registry{
		store:  connStore,
		policy: policy,
		now:    time.Now,
	}
}

// Register stores a new connection record for ac with the default TTL.
func (r *Registry) Register(ctx context.Context, ac auth.AuthenticationContext) (*models.Connection, error) {
	connectionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate connection ID: %w", err)
	}

	data, err := auth.Marshal(ac)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize authentication context: %w", err)
	}

	conn := &models.Connection{
		ConnectionID: connectionID,
		Auth:         data,
		ConnectedAt:  r.now().UTC(),
	}

	if err := r.store.Put(ctx, conn, r.policy.DefaultTTL()); err != nil {
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}

	telemetry.GetMetrics().ActiveConnections.Add(ctx, 1)
	zerolog.Ctx(ctx).Debug().Str("connection_id", connectionID.String()).Msg("Registered connection")

	return conn, nil
}

// Touch extends the record's TTL when it has fallen inside the refresh
// window. It reports whether the TTL was written.
func (r *Registry) Touch(ctx context.Context, connectionID uuid.UUID) (bool, error) {
	_, remaining, err := r.store.Get(ctx, connectionID)
	if err != nil {
		return false, err
	}

	ttl, refreshed := r.policy.TryRefreshTTL(remaining)
	if !refreshed {
		return false, nil
	}

	if err := r.store.Expire(ctx, connectionID, ttl); err != nil {
		return false, err
	}

	telemetry.GetMetrics().ConnectionTTLRefreshes.Add(ctx, 1)
	return true, nil
}

// Lookup returns the authentication context the connection was opened with.
func (r *Registry) Lookup(ctx context.Context, connectionID uuid.UUID) (auth.AuthenticationContext, error) {
	conn, _, err := r.store.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return auth.Unmarshal(conn.Auth)
}

// Unregister removes the record.
func (r *Registry) Unregister(ctx context.Context, connectionID uuid.UUID) error {
	if err := r.store.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("failed to unregister connection: %w", err)
	}

	telemetry.GetMetrics().ActiveConnections.Add(ctx, -1)
	return nil
}
