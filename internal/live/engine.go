// Package live keeps parameterized queries continuously up to date. A
// subscription runs its query once on start and again every time the
// invalidation tracker signals a commit on one of the query's tables.
//
// Each subscription owns one worker goroutine and a single-slot pending
// signal, so at most one execution is in flight per subscription and a burst
// of commits collapses into one re-run that reads the latest state.
package live

import (
	"context"
	"errors"
	"sync"

	"fintrack/internal/cache"
	"fintrack/internal/invalidation"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/query"
)

// ErrClosed is delivered to subscriptions created after Close.
var ErrClosed = errors.New("live engine closed")

type canceller interface {
	Cancel()
}

type Engine struct {
	db      query.Querier
	tracker *invalidation.Tracker
	results cache.Cache[any]
	metrics *metrics.Metrics
	logger  *applog.Logger

	mu     sync.Mutex
	closed bool
	nextID uint64
	subs   map[uint64]canceller
	wg     sync.WaitGroup
}

type Option func(*Engine)

// WithCache shares results between subscriptions to identical queries.
func WithCache(c cache.Cache[any]) Option {
	return func(e *Engine) { e.results = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *applog.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent(applog.ComponentLive) }
}

// NewEngine reads through db and listens on tracker, which must be the
// tracker the mutation adapters report to.
func NewEngine(db query.Querier, tracker *invalidation.Tracker, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		tracker: tracker,
		subs:    make(map[uint64]canceller),
		logger:  applog.Default(applog.ComponentLive),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe starts a live query. The first update carries the current
// result; later updates follow relevant commits. The subscription ends when
// it is cancelled, when ctx is done, or after delivering a terminal error.
func Subscribe[T any](ctx context.Context, e *Engine, q query.Query[T]) *Subscription[T] {
	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		engine:  e,
		query:   q,
		updates: make(chan Update[T]),
		pending: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     runCtx,
		cancel:  cancel,
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go s.closedRun()
		return s
	}
	e.nextID++
	s.id = e.nextID
	e.subs[s.id] = s
	e.wg.Add(1)
	e.mu.Unlock()

	// Register before the first execution so no commit between the two
	// can be missed.
	s.handle = e.tracker.Register(q.Tables, s.signal)
	e.metrics.SubscriptionStarted(q.Name)
	e.logger.DebugContext(ctx, "Subscription started",
		applog.NewFields().WithSubscription(q.Name, s.id).WithOperation(applog.OpSubscribe).ToSlice()...)

	go s.run()
	return s
}

// Active returns the number of running subscriptions.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close cancels every subscription and waits for their workers to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	subs := make([]canceller, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	e.wg.Wait()
}

func (e *Engine) remove(id uint64) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}
