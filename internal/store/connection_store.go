package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
)

// ConnectionStore is a TTL indexed store of live connection records.
type ConnectionStore interface {
	// Put writes the record, expiring it after ttl.
	Put(ctx context.Context, conn *models.Connection, ttl time.Duration) error

	// Get returns the record and its remaining time to live.
	Get(ctx context.Context, connectionID uuid.UUID) (*models.Connection, time.Duration, error)

	// Expire resets the time to live of an existing record.
	Expire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error

	// Delete removes the record. Missing records are ignored.
	Delete(ctx context.Context, connectionID uuid.UUID) error
}
