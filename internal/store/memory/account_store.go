package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/multisession/internal/models"
	"github.com/wolfeidau/multisession/internal/store"
)

// AccountStore implements store.AccountStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type AccountStore struct {
	mu sync.RWMutex

	accounts          map[uuid.UUID]*models.Account // account_id -> Account
	accountsBySubject map[string]uuid.UUID          // google_subject -> account_id
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:          make(map[uuid.UUID]*models.Account),
		accountsBySubject: make(map[string]uuid.UUID),
	}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return nil, store.ErrAccountNotFound
	}

	clone := *account
	return &clone, nil
}

// FindOrCreate returns the account for the Google subject, creating it if needed.
func (s *AccountStore) FindOrCreate(ctx context.Context, criteria store.AccountCriteria) (*models.Account, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if accountID, exists := s.accountsBySubject[criteria.GoogleSubject]; exists {
		account := s.accounts[accountID]
		if applyProfile(account, criteria) {
			account.UpdatedAt = now
		}
		clone := *account
		return &clone, nil
	}

	accountID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account ID: %w", err)
	}

	account := &models.Account{
		AccountID:     accountID,
		GoogleSubject: criteria.GoogleSubject,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyProfile(account, criteria)

	s.accounts[accountID] = account
	s.accountsBySubject[criteria.GoogleSubject] = accountID

	clone := *account
	return &clone, nil
}

// applyProfile copies non-empty profile fields and reports whether any changed.
func applyProfile(account *models.Account, criteria store.AccountCriteria) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&account.Email, criteria.Email)
	set(&account.Name, criteria.Name)
	set(&account.AvatarURL, criteria.AvatarURL)
	return changed
}
