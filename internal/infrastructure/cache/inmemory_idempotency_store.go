package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/wms/backend/internal/application/warehouse"
)

// InMemoryIdempotencyStore implements the posting guard with a plain
// map of key expiries. Suitable for single-instance deployments and
// testing; it does not fence across processes.
type InMemoryIdempotencyStore struct {
	mu       sync.RWMutex
	expiries map[string]time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts a background
// goroutine that evicts expired keys every five minutes.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expiries: make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Begin claims the key with a TTL. Returns false when the key is
// already held and not yet expired.
func (s *InMemoryIdempotencyStore) Begin(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, held := s.expiries[key]; held && now.Before(expiry) {
		return false, nil // held by another operation
	}
	s.expiries[key] = now.Add(ttl)
	return true, nil
}

// Clear releases the key so the operation can retry
func (s *InMemoryIdempotencyStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiries, key)
	return nil
}

// Close stops the eviction goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *InMemoryIdempotencyStore) evictLoop() {
	defer close(s.done)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *InMemoryIdempotencyStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.DeleteFunc(s.expiries, func(_ string, expiry time.Time) bool {
		return now.After(expiry)
	})
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiries)
}

var _ warehouse.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
