package cache

import (
	"context"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value and refreshes its idle deadline
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Cleaner is anything that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// CleanerFunc adapts a function to Cleaner.
type CleanerFunc func() int

func (f CleanerFunc) CleanExpired() int { return f() }

// Manager periodically cleans registered caches.
type Manager struct {
	caches  []Cleaner
	onClean func(removed int)
}

// NewManager creates a new cache manager. onClean, when not nil, is called
// after every pass that removed at least one entry.
func NewManager(onClean func(removed int)) *Manager {
	return &Manager{onClean: onClean}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// CleanOnce runs a single pass over every registered cache.
func (m *Manager) CleanOnce() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 && m.onClean != nil {
		m.onClean(total)
	}
	return total
}

// Run cleans every interval until ctx is done. It always returns nil so it
// can be used directly as an errgroup goroutine.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanOnce()
		case <-ctx.Done():
			return nil
		}
	}
}
