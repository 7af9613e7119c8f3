package cache

import (
	"context"
	"sync"
	"time"

	appsettlement "github.com/settleflow/backend/internal/application/settlement"
)

// InMemoryLockStore implements IdempotencyStore with a process-local map.
// Suitable for single-instance deployments and tests; expired entries are
// reclaimed lazily on the next Acquire for the same key.
type InMemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

// NewInMemoryLockStore creates a new in-memory lock store
func NewInMemoryLockStore() *InMemoryLockStore {
	return &InMemoryLockStore{
		locks: make(map[string]time.Time),
	}
}

// Acquire attempts to take the lock for key. Returns true if the lock was
// newly taken, false if another holder still owns it.
func (s *InMemoryLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, held := s.locks[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

// Release drops the lock for key
func (s *InMemoryLockStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

// Ensure InMemoryLockStore implements IdempotencyStore
var _ appsettlement.IdempotencyStore = (*InMemoryLockStore)(nil)
