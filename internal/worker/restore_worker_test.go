package worker

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

type fakeRestorer struct {
	transactions []core.Transaction
	categories   []core.Category
	err          error
}

func (f *fakeRestorer) RestoreTransaction(_ context.Context, t core.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.transactions = append(f.transactions, t)
	return nil
}

func (f *fakeRestorer) RestoreCategory(_ context.Context, c core.Category) error {
	if f.err != nil {
		return f.err
	}
	f.categories = append(f.categories, c)
	return nil
}

type fakeConsumer struct {
	messages []*amqp.RestoreMessage
	results  []error
}

// ConsumeRestore feeds every message, then blocks until ctx is done.
func (f *fakeConsumer) ConsumeRestore(ctx context.Context, handler amqp.RestoreHandler) error {
	for _, msg := range f.messages {
		f.results = append(f.results, handler(ctx, msg))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRestoreWorker_HandleRestoreMessage(t *testing.T) {
	restorer := &fakeRestorer{}
	w := NewRestoreWorker(restorer, nil)
	ctx := context.Background()

	err := w.HandleRestoreMessage(ctx, &amqp.RestoreMessage{
		Entity:      amqp.EntityTransaction,
		Transaction: &amqp.TransactionRecord{ID: 3, Amount: 4, Category: "Food", Timestamp: 9},
	})
	if err != nil {
		t.Fatalf("HandleRestoreMessage() error = %v", err)
	}
	err = w.HandleRestoreMessage(ctx, &amqp.RestoreMessage{
		Entity:   amqp.EntityCategory,
		Category: &amqp.CategoryRecord{ID: 8, Name: "Salary", IsIncome: true},
	})
	if err != nil {
		t.Fatalf("HandleRestoreMessage() error = %v", err)
	}

	if len(restorer.transactions) != 1 || restorer.transactions[0].ID != 3 {
		t.Errorf("transactions = %+v", restorer.transactions)
	}
	if len(restorer.categories) != 1 || restorer.categories[0].Name != "Salary" {
		t.Errorf("categories = %+v", restorer.categories)
	}
}

func TestRestoreWorker_ErrorClassification(t *testing.T) {
	msg := &amqp.RestoreMessage{Entity: amqp.EntityCategory, Category: &amqp.CategoryRecord{ID: 1, Name: "x"}}

	tests := []struct {
		name        string
		err         error
		wantDropped bool
	}{
		{"missing identity", services.ErrMissingIdentity, true},
		{"invalid amount", core.ErrInvalidAmount, true},
		{"empty name", core.ErrEmptyName, true},
		{"write failed", core.ErrWriteFailed, false},
		{"store unavailable", core.ErrStoreUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRestoreWorker(&fakeRestorer{err: tt.err}, nil)
			err := w.HandleRestoreMessage(context.Background(), msg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error %v should wrap %v", err, tt.err)
			}
			if dropped := errors.Is(err, amqp.ErrInvalidMessage); dropped != tt.wantDropped {
				t.Errorf("dropped = %v, want %v", dropped, tt.wantDropped)
			}
		})
	}
}

func TestRestoreWorker_UnknownEntity(t *testing.T) {
	w := NewRestoreWorker(&fakeRestorer{}, nil)
	err := w.HandleRestoreMessage(context.Background(), &amqp.RestoreMessage{Entity: "budget"})
	if !errors.Is(err, amqp.ErrInvalidMessage) {
		t.Errorf("error = %v, want ErrInvalidMessage", err)
	}
}

func TestRestoreWorker_RunStopsCleanly(t *testing.T) {
	restorer := &fakeRestorer{}
	consumer := &fakeConsumer{messages: []*amqp.RestoreMessage{
		{Entity: amqp.EntityCategory, Category: &amqp.CategoryRecord{ID: 1, Name: "Food"}},
	}}
	w := NewRestoreWorker(restorer, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil on cancellation", err)
	}
	if len(consumer.results) != 1 || consumer.results[0] != nil {
		t.Errorf("handler results = %v", consumer.results)
	}
	if len(restorer.categories) != 1 {
		t.Errorf("categories = %+v", restorer.categories)
	}
}
