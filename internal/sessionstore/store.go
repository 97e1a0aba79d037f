// Package sessionstore holds the process-lifetime Session records the
// original backend kept in a plain in-process dict keyed by session id.
// Grounded on that in-memory-session shape; sessions don't survive a
// restart by design, matching spec.md's Non-goals around durable storage.
package sessionstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/domain"
)

// Store is a concurrency-safe, process-lifetime session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// New builds an empty session store.
func New() *Store {
	return &Store{sessions: make(map[string]*domain.Session)}
}

// Create allocates a new session with a fresh id and default GPT config.
func (s *Store) Create() *domain.Session {
	now := time.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Config:    domain.DefaultGPTConfig(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

// Get retrieves a session by id.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.KindInputInvalid, "no session with id "+id)
	}
	return session, nil
}

// Update applies fn to the session under lock and bumps UpdatedAt.
func (s *Store) Update(id string, fn func(*domain.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return apperr.New(apperr.KindInputInvalid, "no session with id "+id)
	}
	fn(session)
	session.UpdatedAt = time.Now()
	return nil
}

// Delete removes a session from the registry.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
