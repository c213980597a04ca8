package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"fintrack/internal/invalidation"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/query"
)

// Update is one emission of a live query. A non-nil Err is terminal: no
// further updates follow and the channel is closed.
type Update[T any] struct {
	Value T
	Err   error
}

// Subscription is a running live query. Values delivered through Updates
// may be shared with other subscriptions and must not be modified.
type Subscription[T any] struct {
	id     uint64
	engine *Engine
	query  query.Query[T]
	handle invalidation.Handle

	updates chan Update[T]
	pending chan struct{}
	stop    chan struct{}
	done    chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

// Updates delivers results in execution order. It is closed when the
// subscription ends.
func (s *Subscription[T]) Updates() <-chan Update[T] {
	return s.updates
}

// Done is closed once the worker has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error, if any, after Done is closed.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the subscription. An execution in flight is aborted and its
// result discarded; once Cancel returns nothing more is delivered.
func (s *Subscription[T]) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.cancel()
	<-s.done
}

// signal is called by the tracker with its lock held.
func (s *Subscription[T]) signal() {
	select {
	case s.pending <- struct{}{}:
	default:
		s.engine.metrics.Coalesced(s.query.Name)
	}
}

func (s *Subscription[T]) run() {
	defer s.finish()

	// A signal that arrived before the first execution is covered by it
	s.drain()
	if !s.execute() {
		return
	}

	for {
		select {
		case <-s.pending:
			if !s.execute() {
				return
			}
		case <-s.stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Subscription[T]) closedRun() {
	defer func() {
		s.cancel()
		close(s.updates)
		close(s.done)
	}()
	s.fail(ErrClosed)
}

// execute runs the query once and emits the result. It reports whether the
// worker should keep going.
func (s *Subscription[T]) execute() bool {
	e := s.engine
	key := s.query.Key()
	version := e.tracker.Version(s.query.Tables...)

	if e.results != nil {
		if cached, ok := e.results.Get(key, version); ok {
			if v, ok := cached.(T); ok {
				e.metrics.ObserveExecution(s.query.Name, metrics.OutcomeCached, 0)
				return s.emit(Update[T]{Value: v})
			}
			e.results.Delete(key)
		}
	}

	start := time.Now()
	value, err := s.query.Run(s.ctx, e.db)
	if s.stopped() {
		return false
	}
	if err != nil {
		e.metrics.ObserveExecution(s.query.Name, metrics.OutcomeFailed, time.Since(start))
		if e.results != nil {
			e.results.Delete(key)
		}
		s.fail(err)
		return false
	}
	e.metrics.ObserveExecution(s.query.Name, metrics.OutcomeOK, time.Since(start))

	if e.results != nil {
		e.results.Set(key, version, value)
	}
	return s.emit(Update[T]{Value: value})
}

func (s *Subscription[T]) emit(u Update[T]) bool {
	if s.stopped() {
		return false
	}
	select {
	case s.updates <- u:
		if u.Err == nil {
			s.engine.metrics.Emitted(s.query.Name)
		}
		return true
	case <-s.stop:
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	if !errors.Is(err, ErrClosed) {
		s.engine.logger.ErrorContext(s.ctx, "Live query failed",
			applog.NewFields().WithSubscription(s.query.Name, s.id).WithOperation(applog.OpRerun).WithError(err).ToSlice()...)
	}
	s.emit(Update[T]{Err: err})
}

func (s *Subscription[T]) stopped() bool {
	select {
	case <-s.stop:
		return true
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) drain() {
	select {
	case <-s.pending:
	default:
	}
}

func (s *Subscription[T]) finish() {
	e := s.engine
	e.tracker.Unregister(s.handle)
	s.cancel()
	close(s.updates)
	e.remove(s.id)
	e.metrics.SubscriptionEnded(s.query.Name)
	e.logger.Debug("Subscription stopped",
		applog.NewFields().WithSubscription(s.query.Name, s.id).WithOperation(applog.OpCancel).ToSlice()...)
	close(s.done)
	e.wg.Done()
}
