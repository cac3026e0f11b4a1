package session

import (
	"context"
	"time"

	"spendalyzer/internal/cache"
)

// MemoryStore keeps sessions in an LRU cache. Idle sessions expire after
// the cache TTL; the least recently used one is evicted when full.
type MemoryStore struct {
	cache *cache.LRUCache[Session]
}

// NewMemoryStore creates a store holding at most maxSessions sessions, each
// expiring after ttl without access.
func NewMemoryStore(maxSessions int, ttl time.Duration, opts ...cache.Option[Session]) *MemoryStore {
	return &MemoryStore{cache: cache.NewLRUCache[Session](maxSessions, ttl, opts...)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.cache.Set(s.ID, s.Clone())
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// Sweep drops sessions updated before the cutoff, then anything the cache
// already considers expired.
func (m *MemoryStore) Sweep(_ context.Context, before time.Time) (int, error) {
	removed := m.cache.DeleteFunc(func(_ string, s Session) bool {
		return s.UpdatedAt.Before(before)
	})
	return removed + m.cache.CleanExpired(), nil
}

// Len reports how many sessions are held, including expired ones not yet
// cleaned.
func (m *MemoryStore) Len() int {
	return m.cache.Size()
}

func (m *MemoryStore) Close() error {
	return nil
}
