package cache

import (
	"testing"
	"time"
)

func TestLRUCache_VersionMismatchMisses(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("q", 3, 42)

	if v, ok := c.Get("q", 3); !ok || v != 42 {
		t.Fatalf("expected hit at same version, got %v %v", v, ok)
	}
	if _, ok := c.Get("q", 4); ok {
		t.Fatalf("expected miss at newer version")
	}
	if c.Size() != 0 {
		t.Fatalf("stale entry should be dropped, size=%d", c.Size())
	}
}

func TestLRUCache_OlderVersionDoesNotOverwrite(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)
	c.Set("q", 5, "new")
	c.Set("q", 4, "old")

	if v, ok := c.Get("q", 5); !ok || v != "new" {
		t.Fatalf("expected newer entry to survive, got %q %v", v, ok)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1, 1)
	c.Set("b", 1, 2)
	c.Get("a", 1)
	c.Set("c", 1, 3)

	if _, ok := c.Get("b", 1); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := c.Get("a", 1); !ok {
		t.Fatalf("expected a to survive")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1, 1)
	c.Set("b", 1, 2)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a", 1); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, size=%d", c.Size())
	}
}

func TestLRUCache_ZeroSizeDisables(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1, 1)
	if _, ok := c.Get("a", 1); ok {
		t.Fatalf("zero-size cache must not store")
	}
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
