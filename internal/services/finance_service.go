package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/live"
	applog "fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/query"
	"fintrack/internal/storage"
)

// ErrMissingIdentity rejects restore records that carry no identity.
var ErrMissingIdentity = errors.New("restore record has no identity")

// ChangePublisher forwards committed mutations to the remote sync side.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev *amqp.ChangeEvent) error
}

// FinanceService is the application-facing API: validated mutations through
// the storage adapters and live subscriptions through the engine.
type FinanceService struct {
	storage   *storage.SQLiteRepository
	engine    *live.Engine
	publisher ChangePublisher
	metrics   *metrics.Metrics
	logger    *applog.Logger
}

type Option func(*FinanceService)

// WithPublisher enables change events. Without one, mutations stay local.
func WithPublisher(p ChangePublisher) Option {
	return func(s *FinanceService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *FinanceService) { s.metrics = m }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *FinanceService) { s.logger = l.WithComponent(applog.ComponentService) }
}

func NewFinanceService(storage *storage.SQLiteRepository, engine *live.Engine, opts ...Option) *FinanceService {
	s := &FinanceService{
		storage: storage,
		engine:  engine,
		logger:  applog.Default(applog.ComponentService),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertTransaction stores t and returns its identity. A zero ID is assigned
// by the store.
func (s *FinanceService) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	id, err := s.storage.InsertTransaction(ctx, t)
	s.observe(core.TableTransactions, applog.OpInsert, start, err)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, amqp.EntityTransaction, applog.OpInsert, id, t.RemoteID)
	return id, nil
}

func (s *FinanceService) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	start := time.Now()
	err := s.storage.UpdateTransaction(ctx, t)
	s.observe(core.TableTransactions, applog.OpUpdate, start, err)
	if err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityTransaction, applog.OpUpdate, t.ID, t.RemoteID)
	return nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, t core.Transaction) error {
	start := time.Now()
	err := s.storage.DeleteTransaction(ctx, t)
	s.observe(core.TableTransactions, applog.OpDelete, start, err)
	if err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityTransaction, applog.OpDelete, t.ID, t.RemoteID)
	return nil
}

func (s *FinanceService) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	id, err := s.storage.InsertCategory(ctx, c)
	s.observe(core.TableCategories, applog.OpInsert, start, err)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, amqp.EntityCategory, applog.OpInsert, id, "")
	return id, nil
}

func (s *FinanceService) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	start := time.Now()
	err := s.storage.UpdateCategory(ctx, c)
	s.observe(core.TableCategories, applog.OpUpdate, start, err)
	if err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityCategory, applog.OpUpdate, c.ID, "")
	return nil
}

func (s *FinanceService) DeleteCategory(ctx context.Context, c core.Category) error {
	start := time.Now()
	err := s.storage.DeleteCategory(ctx, c)
	s.observe(core.TableCategories, applog.OpDelete, start, err)
	if err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityCategory, applog.OpDelete, c.ID, "")
	return nil
}

// RestoreTransaction writes a record received from the remote side under its
// own identity. Re-delivery overwrites the row, and no change event is sent
// back.
func (s *FinanceService) RestoreTransaction(ctx context.Context, t core.Transaction) error {
	if t.ID == 0 {
		return ErrMissingIdentity
	}
	if err := t.Validate(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.storage.InsertTransaction(ctx, t)
	s.observe(core.TableTransactions, applog.OpRestore, start, err)
	return err
}

func (s *FinanceService) RestoreCategory(ctx context.Context, c core.Category) error {
	if c.ID == 0 {
		return ErrMissingIdentity
	}
	if err := c.Validate(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.storage.InsertCategory(ctx, c)
	s.observe(core.TableCategories, applog.OpRestore, start, err)
	return err
}

// Transaction reads the current row for id.
func (s *FinanceService) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	txs, err := query.TransactionByID(id).Run(ctx, s.storage.DB())
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return txs[0], nil
}

// Category reads the current category for id.
func (s *FinanceService) Category(ctx context.Context, id int64) (core.Category, error) {
	cats, err := query.CategoryByID(id).Run(ctx, s.storage.DB())
	if err != nil {
		return core.Category{}, err
	}
	if len(cats) == 0 {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return cats[0], nil
}

// Range subscriptions treat [start, end] as inclusive. A range with end
// before start matches nothing, so it emits an empty list or an absent total.

func (s *FinanceService) SubscribeTransactionsByDateRange(ctx context.Context, start, end int64) *live.Subscription[[]core.Transaction] {
	return live.Subscribe(ctx, s.engine, query.TransactionsByDateRange(start, end))
}

func (s *FinanceService) SubscribeSearchTransactions(ctx context.Context, start, end int64, text string) *live.Subscription[[]core.Transaction] {
	return live.Subscribe(ctx, s.engine, query.SearchTransactions(start, end, text))
}

// SubscribeIncomeTotal emits nil while no income falls in the range.
func (s *FinanceService) SubscribeIncomeTotal(ctx context.Context, start, end int64) *live.Subscription[*float64] {
	return live.Subscribe(ctx, s.engine, query.IncomeTotal(start, end))
}

// SubscribeExpenseTotal emits nil while no expense falls in the range.
func (s *FinanceService) SubscribeExpenseTotal(ctx context.Context, start, end int64) *live.Subscription[*float64] {
	return live.Subscribe(ctx, s.engine, query.ExpenseTotal(start, end))
}

// SubscribeBalance emits income minus expense, counting absent totals as zero.
func (s *FinanceService) SubscribeBalance(ctx context.Context, start, end int64) *live.Subscription[float64] {
	return live.Subscribe(ctx, s.engine, query.Balance(start, end))
}

func (s *FinanceService) SubscribeCategories(ctx context.Context, isIncome bool) *live.Subscription[[]core.Category] {
	return live.Subscribe(ctx, s.engine, query.CategoriesByType(isIncome))
}

func (s *FinanceService) observe(table, op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, core.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeFailed
	}
	s.metrics.ObserveMutation(table, op, outcome, time.Since(start))
}

// publish runs after commit. A failed publish never fails the mutation.
func (s *FinanceService) publish(ctx context.Context, entity, op string, id int64, remoteID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.NewChangeEvent(entity, op, id, remoteID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change event",
			applog.FieldTable, entity,
			applog.FieldOperation, op,
			applog.FieldID, id,
			applog.FieldError, err)
	}
}

// Close ends every subscription, then closes the store.
func (s *FinanceService) Close() error {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}
