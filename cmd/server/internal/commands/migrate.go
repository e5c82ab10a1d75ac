package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/multisession/internal/logger"
	postgresstore "github.com/wolfeidau/multisession/internal/store/postgres"
)

type MigrateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	pool, err := postgresstore.NewPool(ctx, c.Postgres.poolConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := postgresstore.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Msg("Database migrations applied")
	return nil
}
