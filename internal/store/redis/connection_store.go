// Package redis stores live connection records in Redis, using key expiry as
// the TTL index.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

const defaultKeyPrefix = "multisession:conn:"

// Config holds the Redis connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// StartupRetry bounds how long NewClient retries the initial ping.
	StartupRetry time.Duration
}

// NewClient connects to Redis, retrying the first ping with exponential backoff.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.StartupRetry == 0 {
		cfg.StartupRetry = 30 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.StartupRetry),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("Redis not ready, retrying")
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// ConnectionStore implements store.ConnectionStore on Redis.
type ConnectionStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewConnectionStore creates a Redis-backed connection store.
func NewConnectionStore(client goredis.UniversalClient, keyPrefix string) *ConnectionStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &ConnectionStore{client: client, prefix: keyPrefix}
}

func (s *ConnectionStore) key(connectionID uuid.UUID) string {
	return s.prefix + connectionID.String()
}

func (s *ConnectionStore) Put(ctx context.Context, conn *models.Connection, ttl time.Duration) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("failed to encode connection: %w", err)
	}

	if err := s.client.Set(ctx, s.key(conn.ConnectionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) Get(ctx context.Context, connectionID uuid.UUID) (*models.Connection, time.Duration, error) {
	key := s.key(connectionID)

	var (
		getCmd *goredis.StringCmd
		ttlCmd *goredis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("failed to load connection: %w", err)
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, 0, store.ErrConnectionNotFound
		}
		return nil, 0, fmt.Errorf("failed to load connection: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		// key vanished between commands or carries no expiry
		return nil, 0, store.ErrConnectionNotFound
	}

	var conn models.Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, 0, fmt.Errorf("failed to decode connection: %w", err)
	}

	return &conn, ttl, nil
}

func (s *ConnectionStore) Expire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, s.key(connectionID), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh connection ttl: %w", err)
	}
	if !ok {
		return store.ErrConnectionNotFound
	}
	return nil
}

func (s *ConnectionStore) Delete(ctx context.Context, connectionID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(connectionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
