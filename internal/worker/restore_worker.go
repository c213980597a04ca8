package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// Restorer writes remote records under their own identities.
type Restorer interface {
	RestoreTransaction(ctx context.Context, t core.Transaction) error
	RestoreCategory(ctx context.Context, c core.Category) error
}

// RestoreConsumer delivers restore messages until ctx is done.
type RestoreConsumer interface {
	ConsumeRestore(ctx context.Context, handler amqp.RestoreHandler) error
}

// RestoreWorker applies records pulled from the remote side to the local
// store. Every applied record goes through the mutation adapters, so live
// subscriptions see restored data like any other commit.
type RestoreWorker struct {
	restorer Restorer
	consumer RestoreConsumer
	logger   *applog.Logger
}

func NewRestoreWorker(restorer Restorer, consumer RestoreConsumer) *RestoreWorker {
	return &RestoreWorker{
		restorer: restorer,
		consumer: consumer,
		logger:   applog.Default(applog.ComponentWorker),
	}
}

// Run consumes until ctx is cancelled. Cancellation is not reported as an
// error.
func (w *RestoreWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Restore worker started")
	err := w.consumer.ConsumeRestore(ctx, w.HandleRestoreMessage)
	if errors.Is(err, context.Canceled) {
		w.logger.InfoContext(ctx, "Restore worker stopped")
		return nil
	}
	return err
}

// HandleRestoreMessage applies one message. Records that can never be
// applied are reported as amqp.ErrInvalidMessage so they are dropped rather
// than redelivered.
func (w *RestoreWorker) HandleRestoreMessage(ctx context.Context, msg *amqp.RestoreMessage) error {
	var err error
	var id int64
	switch msg.Entity {
	case amqp.EntityTransaction:
		id = msg.Transaction.ID
		err = w.restorer.RestoreTransaction(ctx, msg.Transaction.ToCore())
	case amqp.EntityCategory:
		id = msg.Category.ID
		err = w.restorer.RestoreCategory(ctx, msg.Category.ToCore())
	default:
		return fmt.Errorf("%w: unknown entity %q", amqp.ErrInvalidMessage, msg.Entity)
	}

	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %s %d: %w", amqp.ErrInvalidMessage, msg.Entity, id, err)
		}
		return fmt.Errorf("restore %s %d: %w", msg.Entity, id, err)
	}

	w.logger.DebugContext(ctx, "Restored record",
		applog.FieldTable, msg.Entity,
		applog.FieldID, id)
	return nil
}

func permanent(err error) bool {
	for _, target := range []error{
		services.ErrMissingIdentity,
		core.ErrInvalidAmount,
		core.ErrEmptyCategory,
		core.ErrEmptyName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
