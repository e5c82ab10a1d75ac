package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/multisession/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"MULTISESSION_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" help:"Start the session service"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
