package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheSlidingTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock.Now))

	c.Set("a", 1)
	clock.Advance(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be live")
	}
	// The Get above pushed the deadline out by another minute.
	clock.Advance(50 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v after sliding", v, ok)
	}
	clock.Advance(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLRUCacheCapacityEviction(t *testing.T) {
	var evicted []string
	c := NewLRUCache[string](2, time.Hour, WithEvict(func(key, _ string) {
		evicted = append(evicted, key)
	}))

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b was least recently used and should be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "c" || keys[1] != "a" {
		t.Fatalf("keys = %v, want [c a]", keys)
	}

	c.Delete("a")
	if len(evicted) != 1 {
		t.Fatal("Delete must not run the evict callback")
	}
}

func TestCleanExpiredAndManager(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](0, time.Minute, WithClock[int](clock.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)
	c.Set("c", 3)
	clock.Advance(45 * time.Second)

	var reported int
	m := NewManager(func(n int) { reported = n })
	m.Register(c)
	m.Register(CleanerFunc(func() int { return 0 }))

	if n := m.CleanOnce(); n != 2 {
		t.Fatalf("CleanOnce = %d, want 2", n)
	}
	if reported != 2 {
		t.Fatalf("onClean reported %d", reported)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Hour); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestDeleteFunc(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	for i, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, i)
	}
	if n := c.DeleteFunc(func(_ string, v int) bool { return v%2 == 0 }); n != 2 {
		t.Fatalf("DeleteFunc removed %d, want 2", n)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "d" || keys[1] != "b" {
		t.Fatalf("keys = %v, want [d b]", keys)
	}
}
