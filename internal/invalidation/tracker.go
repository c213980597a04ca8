// Package invalidation tracks which live queries depend on which tables and
// signals them when a committed mutation touches one of those tables.
package invalidation

import (
	"sync"
)

// Handle identifies a registration. The zero Handle is never issued.
type Handle uint64

// SignalFunc is invoked while the registry lock is held, so it must not block
// and must not call back into the Tracker.
type SignalFunc func()

type registration struct {
	tables map[string]struct{}
	signal SignalFunc
}

// Tracker is the registry shared by mutation adapters and the query engine.
// All methods are safe for concurrent use and never perform I/O.
type Tracker struct {
	mu       sync.Mutex
	nextID   Handle
	subs     map[Handle]*registration
	versions map[string]uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		subs:     make(map[Handle]*registration),
		versions: make(map[string]uint64),
	}
}

// Register adds a subscription depending on tables. Notifications already in
// progress when Register is called are not delivered to it.
func (t *Tracker) Register(tables []string, signal SignalFunc) Handle {
	set := make(map[string]struct{}, len(tables))
	for _, name := range tables {
		set[name] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	t.subs[t.nextID] = &registration{tables: set, signal: signal}
	return t.nextID
}

// Unregister removes a registration. Once it returns, the registration's
// signal will not be invoked again. Reports whether the handle was live.
func (t *Tracker) Unregister(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[h]; !ok {
		return false
	}
	delete(t.subs, h)
	return true
}

// Notify records a commit touching tables and signals every registration
// whose dependency set intersects them. Returns the number signalled.
func (t *Tracker) Notify(tables ...string) int {
	if len(tables) == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range tables {
		t.versions[name]++
	}

	signalled := 0
	for _, reg := range t.subs {
		if reg.dependsOn(tables) {
			reg.signal()
			signalled++
		}
	}
	return signalled
}

// Version returns a counter that changes whenever any of tables is notified.
// Results computed from these tables are current only while it is unchanged.
// Per-table counters only grow, so the sum changes on every notify.
func (t *Tracker) Version(tables ...string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var v uint64
	for _, name := range tables {
		v += t.versions[name]
	}
	return v
}

// Len returns the number of live registrations.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (r *registration) dependsOn(tables []string) bool {
	for _, name := range tables {
		if _, ok := r.tables[name]; ok {
			return true
		}
	}
	return false
}
