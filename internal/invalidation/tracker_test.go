package invalidation

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_NotifyIntersectingOnly(t *testing.T) {
	tr := NewTracker()

	var txSignals, catSignals, bothSignals atomic.Int32
	tr.Register([]string{"transactions"}, func() { txSignals.Add(1) })
	tr.Register([]string{"categories"}, func() { catSignals.Add(1) })
	tr.Register([]string{"transactions", "categories"}, func() { bothSignals.Add(1) })

	n := tr.Notify("categories")
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(0), txSignals.Load(), "disjoint table must not signal")
	assert.Equal(t, int32(1), catSignals.Load())
	assert.Equal(t, int32(1), bothSignals.Load())

	n = tr.Notify("transactions", "categories")
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(1), txSignals.Load())
	assert.Equal(t, int32(2), bothSignals.Load(), "one signal per notification even when several tables match")
}

func TestTracker_NotifyNoTables(t *testing.T) {
	tr := NewTracker()
	called := false
	tr.Register([]string{"transactions"}, func() { called = true })

	assert.Equal(t, 0, tr.Notify())
	assert.False(t, called)
}

func TestTracker_Unregister(t *testing.T) {
	tr := NewTracker()
	var signals atomic.Int32
	h := tr.Register([]string{"transactions"}, func() { signals.Add(1) })
	require.Equal(t, 1, tr.Len())

	assert.True(t, tr.Unregister(h))
	assert.False(t, tr.Unregister(h), "second unregister is a no-op")
	assert.Equal(t, 0, tr.Len())

	tr.Notify("transactions")
	assert.Equal(t, int32(0), signals.Load())
}

func TestTracker_HandlesAreUnique(t *testing.T) {
	tr := NewTracker()
	seen := make(map[Handle]bool)
	for i := 0; i < 100; i++ {
		h := tr.Register(nil, func() {})
		require.NotZero(t, h)
		require.False(t, seen[h], "handle %d issued twice", h)
		seen[h] = true
	}
}

func TestTracker_Version(t *testing.T) {
	tr := NewTracker()

	txBefore := tr.Version("transactions")
	catBefore := tr.Version("categories")

	tr.Notify("transactions")

	assert.NotEqual(t, txBefore, tr.Version("transactions"))
	assert.Equal(t, catBefore, tr.Version("categories"), "unrelated table version must not move")
}

func TestTracker_CombinedVersionNeverRepeats(t *testing.T) {
	tr := NewTracker()
	tables := []string{"transactions", "categories"}

	seen := map[uint64]bool{tr.Version(tables...): true}
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			tr.Notify("transactions")
		} else {
			tr.Notify("categories")
		}
		v := tr.Version(tables...)
		assert.False(t, seen[v], "version %d repeated after notify %d", v, i)
		seen[v] = true
	}
}

func TestTracker_ConcurrentRegisterNotify(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h := tr.Register([]string{"transactions"}, func() {})
			tr.Unregister(h)
		}()
		go func() {
			defer wg.Done()
			tr.Notify("transactions")
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, tr.Len())
}

func TestTracker_NoSignalAfterUnregisterReturns(t *testing.T) {
	tr := NewTracker()
	var (
		mu      sync.Mutex
		removed bool
		late    bool
	)
	h := tr.Register([]string{"transactions"}, func() {
		mu.Lock()
		if removed {
			late = true
		}
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			tr.Notify("transactions")
		}
	}()

	tr.Unregister(h)
	mu.Lock()
	removed = true
	mu.Unlock()
	<-done

	assert.False(t, late, "signal delivered after Unregister returned")
}
