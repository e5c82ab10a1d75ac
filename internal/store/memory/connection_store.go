package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

type connectionEntry struct {
	conn     models.Connection
	deadline time.Time
}

// ConnectionStore implements store.ConnectionStore using in-memory storage.
// Records past their deadline are treated as missing and pruned lazily.
type ConnectionStore struct {
	mu  sync.Mutex
	now func() time.Time

	entries map[uuid.UUID]*connectionEntry
}

// NewConnectionStore creates a new in-memory connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		now:     time.Now,
		entries: make(map[uuid.UUID]*connectionEntry),
	}
}

// WithClock replaces the clock used for TTL accounting.
func (s *ConnectionStore) WithClock(now func() time.Time) *ConnectionStore {
	s.now = now
	return s
}

func (s *ConnectionStore) Put(ctx context.Context, conn *models.Connection, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *conn
	clone.Auth = append([]byte(nil), conn.Auth...)
	s.entries[conn.ConnectionID] = &connectionEntry{conn: clone, deadline: s.now().Add(ttl)}
	return nil
}

func (s *ConnectionStore) Get(ctx context.Context, connectionID uuid.UUID) (*models.Connection, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.live(connectionID)
	if err != nil {
		return nil, 0, err
	}

	clone := entry.conn
	clone.Auth = append([]byte(nil), entry.conn.Auth...)
	return &clone, entry.deadline.Sub(s.now()), nil
}

func (s *ConnectionStore) Expire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.live(connectionID)
	if err != nil {
		return err
	}
	entry.deadline = s.now().Add(ttl)
	return nil
}

func (s *ConnectionStore) Delete(ctx context.Context, connectionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, connectionID)
	return nil
}

// live must be called with mu held.
func (s *ConnectionStore) live(connectionID uuid.UUID) (*connectionEntry, error) {
	entry, exists := s.entries[connectionID]
	if !exists {
		return nil, store.ErrConnectionNotFound
	}
	if !s.now().Before(entry.deadline) {
		delete(s.entries, connectionID)
		return nil, store.ErrConnectionNotFound
	}
	return entry, nil
}
