package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type SessionStore struct {
	mu  sync.RWMutex
	now func() time.Time

	sessions        map[uuid.UUID]*models.Session // session_id -> Session
	sessionsByToken map[string]uuid.UUID          // token -> session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		now:             time.Now,
		sessions:        make(map[uuid.UUID]*models.Session),
		sessionsByToken: make(map[string]uuid.UUID),
	}
}

// WithClock replaces the clock used to decide whether a session has expired.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Create creates a new session in memory.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessionsByToken[session.Token]; exists {
		return store.ErrDuplicateToken
	}

	// Clone to avoid external modifications
	clone := *session
	s.sessions[session.SessionID] = &clone
	s.sessionsByToken[session.Token] = session.SessionID

	return nil
}

// GetByToken retrieves a live session by token.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessionID, exists := s.sessionsByToken[token]
	if !exists {
		return nil, store.ErrSessionNotFound
	}

	session := s.sessions[sessionID]
	if session.IsExpired(s.now()) {
		return nil, store.ErrSessionNotFound
	}

	clone := *session
	return &clone, nil
}

// UpdateExpiry sets the expiry and last used time for a session.
func (s *SessionStore) UpdateExpiry(ctx context.Context, sessionID uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrSessionNotFound
	}

	session.ExpiresAt = expiresAt
	session.LastUsedAt = s.now()
	return nil
}

// Delete deletes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return store.ErrSessionNotFound
	}

	delete(s.sessionsByToken, session.Token)
	delete(s.sessions, sessionID)

	return nil
}

// DeleteByTokens deletes every session holding one of tokens.
func (s *SessionStore) DeleteByTokens(ctx context.Context, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range tokens {
		sessionID, exists := s.sessionsByToken[token]
		if !exists {
			continue
		}
		delete(s.sessionsByToken, token)
		delete(s.sessions, sessionID)
	}

	return nil
}

// DeleteExpired deletes all sessions expired at now (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessionsByToken, session.Token)
			delete(s.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
