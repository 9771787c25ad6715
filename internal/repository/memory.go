package repository

import (
	"context"
	"sync"
	"time"

	"store-assistant/internal/domain"
)

type memoryEntry struct {
	draft     domain.Draft
	expiresAt time.Time
}

// memoryStore keeps drafts in process. Suitable for a single server.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: now}
}

func (s *memoryStore) Load(_ context.Context, sessionID string) (*domain.Draft, error) {
	if err := requireSession("load", sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return nil, nil
	}
	d := e.draft
	d.Products = append([]domain.ProductRef(nil), e.draft.Products...)
	return &d, nil
}

func (s *memoryStore) Save(_ context.Context, draft domain.Draft) error {
	if err := requireSession("save", draft.SessionID); err != nil {
		return err
	}
	draft.Products = append([]domain.ProductRef(nil), draft.Products...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[draft.SessionID] = memoryEntry{draft: draft, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
