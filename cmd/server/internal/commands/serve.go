package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/api"
	"github.com/wolfeidau/multisession/internal/auth"
	"github.com/wolfeidau/multisession/internal/client"
	"github.com/wolfeidau/multisession/internal/connections"
	"github.com/wolfeidau/multisession/internal/directory"
	"github.com/wolfeidau/multisession/internal/expiry"
	"github.com/wolfeidau/multisession/internal/google"
	"github.com/wolfeidau/multisession/internal/logger"
	"github.com/wolfeidau/multisession/internal/store"
	memorystore "github.com/wolfeidau/multisession/internal/store/memory"
	postgresstore "github.com/wolfeidau/multisession/internal/store/postgres"
	redisstore "github.com/wolfeidau/multisession/internal/store/redis"
	"github.com/wolfeidau/multisession/internal/telemetry"
)

type ServeCmd struct {
	// Server configuration
	Listen         string   `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"MULTISESSION_LISTEN"`
	AllowedOrigins []string `help:"origins allowed to make credentialed cross origin requests" env:"MULTISESSION_ALLOWED_ORIGINS"`
	TrustProxy     bool     `help:"read the client address from X-Forwarded-For" default:"false" env:"MULTISESSION_TRUST_PROXY"`
	SecureCookies  bool     `help:"mark the directory cookie Secure" default:"true" negatable:"" env:"MULTISESSION_SECURE_COOKIES"`

	// Google sign in
	GoogleClientID     string `help:"Google OAuth client ID" env:"MULTISESSION_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `help:"Google OAuth client secret, enables authorization code sign in" env:"MULTISESSION_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `help:"redirect URL registered for the authorization code flow" default:"postmessage" env:"MULTISESSION_GOOGLE_REDIRECT_URL"`
	GoogleJWKSURL      string `help:"JWKS endpoint for ID token keys" default:"https://www.googleapis.com/oauth2/v3/certs" env:"MULTISESSION_GOOGLE_JWKS_URL"`
	JWKSCacheDir       string `help:"directory for the JWKS HTTP cache, empty keeps it in memory" env:"MULTISESSION_JWKS_CACHE_DIR"`

	// Expiration policies
	SessionDuration     time.Duration `help:"session lifetime" default:"336h" env:"MULTISESSION_SESSION_DURATION"`
	SessionThreshold    float64       `help:"fraction of the lifetime remaining at which sessions are extended" default:"0.5" env:"MULTISESSION_SESSION_THRESHOLD"`
	ConnectionDuration  time.Duration `help:"connection record lifetime" default:"4h" env:"MULTISESSION_CONNECTION_DURATION"`
	ConnectionThreshold float64       `help:"fraction of the lifetime remaining at which connection records are extended" default:"0.75" env:"MULTISESSION_CONNECTION_THRESHOLD"`
	SweepInterval       time.Duration `help:"interval between expired session sweeps, 0 disables" default:"1h" env:"MULTISESSION_SWEEP_INTERVAL"`

	// Stores
	StoreType    string        `help:"session store type (memory or postgres)" default:"memory" env:"MULTISESSION_STORE_TYPE" enum:"memory,postgres"`
	Postgres     PostgresFlags `embed:"" prefix:"postgres-"`
	AutoMigrate  bool          `help:"run database migrations on startup" default:"false" env:"MULTISESSION_POSTGRES_AUTO_MIGRATE"`
	RegistryType string        `help:"connection registry type (memory or redis)" default:"memory" env:"MULTISESSION_REGISTRY_TYPE" enum:"memory,redis"`
	Redis        RedisFlags    `embed:"" prefix:"redis-"`

	Tracing bool `help:"enable OpenTelemetry export" default:"false" env:"MULTISESSION_TRACING"`
}

type RedisFlags struct {
	Addr      string `help:"Redis address" default:"localhost:6379" env:"MULTISESSION_REDIS_ADDR"`
	Password  string `help:"Redis password" env:"MULTISESSION_REDIS_PASSWORD"`
	DB        int    `help:"Redis database" default:"0" env:"MULTISESSION_REDIS_DB"`
	KeyPrefix string `help:"prefix for connection keys" default:"multisession:conn:" env:"MULTISESSION_REDIS_KEY_PREFIX"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{Version: globals.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	sessionPolicy, err := expiry.NewPolicy(c.SessionDuration, c.SessionThreshold)
	if err != nil {
		return fmt.Errorf("invalid session policy: %w", err)
	}
	connectionPolicy, err := expiry.NewPolicy(c.ConnectionDuration, c.ConnectionThreshold)
	if err != nil {
		return fmt.Errorf("invalid connection policy: %w", err)
	}

	stores, ready, closeStores, err := c.createStores(ctx, log)
	if err != nil {
		return err
	}
	defer closeStores()

	connStore, closeRegistry, err := c.createConnectionStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeRegistry()

	verifier, err := c.createVerifier(log)
	if err != nil {
		return err
	}

	resolver := auth.NewResolver(stores, auth.Config{
		SessionPolicy: sessionPolicy,
		Cookie:        directory.CookieOptions{Secure: c.SecureCookies},
		Verifier:      verifier,
	})
	defer resolver.Wait()

	if c.SweepInterval > 0 {
		sweeper := auth.NewSessionSweeper(ctx, stores.Sessions, c.SweepInterval)
		defer sweeper.Stop()
	}

	registry := connections.NewRegistry(connStore, connectionPolicy)

	handler, err := api.NewHandler(resolver, api.Config{
		AllowedOrigins: c.AllowedOrigins,
		TrustProxy:     c.TrustProxy,
		WebSocket:      connections.NewHandler(resolver, registry, c.AllowedOrigins),
		Ready:          ready,
	}, log)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("store", c.StoreType).Str("registry", c.RegistryType).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}

func (c *ServeCmd) createStores(ctx context.Context, log zerolog.Logger) (auth.Stores, func(*http.Request) error, func(), error) {
	switch c.StoreType {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, c.Postgres.poolConfig())
		if err != nil {
			return auth.Stores{}, nil, nil, fmt.Errorf("failed to create store pool: %w", err)
		}

		if c.AutoMigrate {
			if err := postgresstore.Migrate(ctx, pool); err != nil {
				pool.Close()
				return auth.Stores{}, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		cfg := postgresstore.StoreConfig{QueryTimeoutSeconds: int32(c.Postgres.QueryTimeout)}
		log.Info().Msg("Using PostgreSQL session store")

		return auth.Stores{
			Sessions: postgresstore.NewSessionStore(pool, cfg),
			Accounts: postgresstore.NewAccountStore(pool, cfg),
		}, pingPool(pool), pool.Close, nil

	default:
		log.Warn().Msg("Using in-memory session store, sessions are lost on restart")
		return auth.Stores{
			Sessions: memorystore.NewSessionStore(),
			Accounts: memorystore.NewAccountStore(),
		}, nil, func() {}, nil
	}
}

func pingPool(pool *pgxpool.Pool) func(*http.Request) error {
	return func(r *http.Request) error {
		return pool.Ping(r.Context())
	}
}

func (c *ServeCmd) createConnectionStore(ctx context.Context, log zerolog.Logger) (store.ConnectionStore, func(), error) {
	switch c.RegistryType {
	case "redis":
		rdb, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.Redis.Addr).Msg("Using Redis connection registry")
		return redisstore.NewConnectionStore(rdb, c.Redis.KeyPrefix), closeRedis(rdb, log), nil

	default:
		log.Info().Msg("Using in-memory connection registry")
		return memorystore.NewConnectionStore(), func() {}, nil
	}
}

func closeRedis(rdb *goredis.Client, log zerolog.Logger) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}
}

func (c *ServeCmd) createVerifier(log zerolog.Logger) (auth.CredentialVerifier, error) {
	if c.GoogleClientID == "" {
		log.Warn().Msg("No Google client ID configured, sign in is disabled")
		return nil, nil
	}

	keys := google.NewKeyCache(c.GoogleJWKSURL, client.NewCachingHTTPClient(c.JWKSCacheDir))
	verifier := google.NewVerifier(c.GoogleClientID, keys)

	var exchanger *google.Exchanger
	if c.GoogleClientSecret != "" {
		var err error
		exchanger, err = google.NewExchanger(c.GoogleClientID, c.GoogleClientSecret, c.GoogleRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure authorization code exchange: %w", err)
		}
	}

	return google.NewProvider(verifier, exchanger), nil
}
