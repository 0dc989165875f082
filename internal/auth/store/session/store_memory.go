package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"adminguard/internal/auth/models"
	id "adminguard/pkg/domain"
	"adminguard/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in process. Suitable for a single instance and tests.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	byUser   map[id.UserID]map[id.SessionID]struct{}
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[id.SessionID]*models.Session),
		byUser:   make(map[id.UserID]map[id.SessionID]struct{}),
	}
}

// Create inserts session if its id is absent, else sentinel.ErrConflict.
func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = session.Clone()
	if s.byUser[session.UserID] == nil {
		s.byUser[session.UserID] = make(map[id.SessionID]struct{})
	}
	s.byUser[session.UserID][session.ID] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session.Clone(), nil
}

// ListByUser returns the user's sessions, oldest first.
func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0, len(s.byUser[userID]))
	for sessionID := range s.byUser[userID] {
		out = append(out, s.sessions[sessionID].Clone())
	}
	sortOldestFirst(out)
	return out, nil
}

// Touch records activity if the session is still active. Missing sessions are ignored.
func (s *InMemorySessionStore) Touch(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		session.Touch(at)
	}
	return nil
}

// Terminate ends the session. Returns sentinel.ErrNotFound or sentinel.ErrInvalidState
// when it is already expired or terminated.
func (s *InMemorySessionStore) Terminate(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	return session.Terminate(at)
}

// DeleteReapable drops sessions that stopped being usable before cutoff.
func (s *InMemorySessionStore) DeleteReapable(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for sessionID, session := range s.sessions {
		if !session.Reapable(cutoff) {
			continue
		}
		delete(s.sessions, sessionID)
		if ids := s.byUser[session.UserID]; ids != nil {
			delete(ids, sessionID)
			if len(ids) == 0 {
				delete(s.byUser, session.UserID)
			}
		}
		deleted++
	}
	return deleted, nil
}

// UserIDs lists every user holding at least one stored session.
func (s *InMemorySessionStore) UserIDs(_ context.Context) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.UserID, 0, len(s.byUser))
	for userID := range s.byUser {
		out = append(out, userID)
	}
	return out, nil
}

func sortOldestFirst(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].IssuedAt.Equal(sessions[j].IssuedAt) {
			return sessions[i].ID.String() < sessions[j].ID.String()
		}
		return sessions[i].IssuedAt.Before(sessions[j].IssuedAt)
	})
}
