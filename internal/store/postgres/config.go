package postgres

import (
	"context"
	"time"
)

// StoreConfig holds settings shared by the PostgreSQL-backed stores.
// Pool configuration is handled separately via PoolConfig.
type StoreConfig struct {
	// QueryTimeoutSeconds is the maximum time a query can run before timing out.
	// Default: 5 seconds
	// Set to -1 to use context timeouts only (no additional timeout)
	QueryTimeoutSeconds int32
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 5
	}
}

func (c StoreConfig) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(c.QueryTimeoutSeconds)*time.Second)
}
