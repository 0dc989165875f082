package store

import (
	"context"
	"sync"

	"adminguard/internal/identity/credentials"
	"adminguard/internal/identity/models"
	id "adminguard/pkg/domain"
	"adminguard/pkg/platform/sentinel"
	"adminguard/pkg/requestcontext"
)

// InMemoryStore is a credential store for local runs and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.Identity
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*models.Identity),
		byEmail: make(map[string]id.UserID),
	}
}

// Create inserts identity. Returns sentinel.ErrConflict when the email is taken.
func (s *InMemoryStore) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := models.NormalizeEmail(identity.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[identity.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := identity.Clone()
	stored.Email = email
	s.byID[stored.ID] = stored
	s.byEmail[email] = stored.ID
	return nil
}

// GetIdentityByEmail returns sentinel.ErrNotFound for unknown emails.
func (s *InMemoryStore) GetIdentityByEmail(_ context.Context, email string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[userID].Clone(), nil
}

func (s *InMemoryStore) GetIdentityByID(_ context.Context, userID id.UserID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return identity.Clone(), nil
}

func (s *InMemoryStore) VerifyPassword(identity *models.Identity, plaintext string) bool {
	if identity == nil {
		credentials.EqualizeTiming(plaintext)
		return false
	}
	return credentials.CheckPassword(identity.PasswordHash, plaintext)
}

// UpdateIdentity applies patch atomically and returns the updated identity.
func (s *InMemoryStore) UpdateIdentity(ctx context.Context, userID id.UserID, patch models.Patch) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	identity.Apply(patch, requestcontext.Now(ctx))
	return identity.Clone(), nil
}
