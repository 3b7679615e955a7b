package revocation

import (
	"context"
	"sync"
	"time"

	domain "chesslessons/backend/internal/domain/auth"
)

// MemoryStore keeps revoked refresh tokens in process memory. Entries are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

var _ domain.RevocationStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryStore) Add(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemoryStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for jti, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, jti)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked), nil
}
