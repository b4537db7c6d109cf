package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationStore keeps revocations in-memory. It is safe for concurrent
// use and intended for single-instance deployments and tests.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID, _ string, expiresAt time.Time) error {
	s.mu.Lock()
	s.revoked[tokenID] = expiresAt
	s.mu.Unlock()
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	_, ok := s.revoked[tokenID]
	s.mu.RUnlock()
	return ok, nil
}

// PurgeExpired removes revocations whose token has expired.
func (s *MemoryRevocationStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, expiresAt := range s.revoked {
		if !now.Before(expiresAt) {
			delete(s.revoked, id)
			purged++
		}
	}
	return purged, nil
}

// Ping always reports success for the in-memory store.
func (s *MemoryRevocationStore) Ping(context.Context) error {
	return nil
}
