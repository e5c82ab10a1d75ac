package commands

import (
	"net/http"
	"time"

	postgresstore "github.com/wolfeidau/multisession/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

// PostgresFlags configures the PostgreSQL connection pool.
type PostgresFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
	StartupRetry    int32 `help:"seconds to keep retrying the first connection" default:"30" env:"MULTISESSION_POSTGRES_STARTUP_RETRY"`
	QueryTimeout    int   `help:"per query timeout in seconds, 0 disables" default:"5" env:"MULTISESSION_POSTGRES_QUERY_TIMEOUT"`
}

func (f PostgresFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:          f.ConnString,
		MaxConns:            f.MaxConns,
		MinConns:            f.MinConns,
		MaxConnLifetime:     f.MaxConnLifetime,
		MaxConnIdleTime:     f.MaxConnIdleTime,
		StartupRetrySeconds: f.StartupRetry,
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    16 * 1024, // the directory cookie grows with each account
	}
}
