package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "fintrack/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{70, 30 * time.Second}, // no shift overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection error", errors.New("connection closed"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection error", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		{"deliveries closed", errDeliveriesClosed, true},
		{"not connected", ErrNotConnected, true},
		{"other error", errors.New("some other error"), false},
		{"precondition failed", errors.New("PRECONDITION_FAILED - inequivalent arg"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClient_PublishChangeRequiresConnection(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", changesQueue: "test_changes"}

	err := client.PublishChange(context.Background(), NewChangeEvent(EntityTransaction, "insert", 1, ""))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishChange() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_ConsumeRestoreStopsOnCancelledContext(t *testing.T) {
	client := &Client{restoreQueue: "test_restore", logger: applog.Default(applog.ComponentAMQP)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.ConsumeRestore(ctx, func(context.Context, *RestoreMessage) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ConsumeRestore() error = %v, want context.Canceled", err)
	}
}

// fakeAcknowledger records how deliveries were settled.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestClient_HandleDelivery(t *testing.T) {
	valid := `{"entity":"category","category":{"id":7,"name":"Food","isIncome":false}}`

	tests := []struct {
		name        string
		body        string
		handlerErr  error
		wantCalled  bool
		wantAck     bool
		wantRequeue bool
	}{
		{name: "applied", body: valid, wantCalled: true, wantAck: true},
		{name: "undecodable body is dropped", body: `{not json`},
		{name: "unknown entity is dropped", body: `{"entity":"budget"}`},
		{name: "transient failure is requeued", body: valid, handlerErr: errors.New("database is locked"), wantCalled: true, wantRequeue: true},
		{name: "invalid record is dropped", body: valid, handlerErr: fmt.Errorf("%w: empty name", ErrInvalidMessage), wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{logger: applog.Default(applog.ComponentAMQP)}
			ack := &fakeAcknowledger{}
			called := false

			client.handleDelivery(context.Background(), amqp091.Delivery{
				Acknowledger: ack,
				DeliveryTag:  1,
				Body:         []byte(tt.body),
			}, func(_ context.Context, msg *RestoreMessage) error {
				called = true
				if msg.Category == nil || msg.Category.ID != 7 {
					t.Errorf("unexpected message: %+v", msg)
				}
				return tt.handlerErr
			})

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantAck {
				if ack.acks != 1 || ack.nacks != 0 {
					t.Errorf("acks=%d nacks=%d, want a single ack", ack.acks, ack.nacks)
				}
				return
			}
			if ack.acks != 0 || ack.nacks != 1 {
				t.Fatalf("acks=%d nacks=%d, want a single nack", ack.acks, ack.nacks)
			}
			if ack.requeue[0] != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeue[0], tt.wantRequeue)
			}
		})
	}
}

func TestNewChangeEvent(t *testing.T) {
	msg := NewChangeEvent(EntityTransaction, "update", 12345, "sheet-row-9")

	if msg.Entity != EntityTransaction || msg.Op != "update" {
		t.Errorf("NewChangeEvent() = %+v", msg)
	}
	if msg.ID != 12345 || msg.RemoteID != "sheet-row-9" {
		t.Errorf("NewChangeEvent() identities = %d/%q", msg.ID, msg.RemoteID)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewChangeEvent() Timestamp should be recent")
	}
}

func TestChangeEvent_JSONOmitsEmptyRemoteID(t *testing.T) {
	msg := &ChangeEvent{Entity: EntityCategory, Op: "delete", ID: 3, Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if strings.Contains(string(body), "remoteId") {
		t.Errorf("empty remoteId should be omitted: %s", body)
	}

	parsed, err := ChangeEventFromJSON(body)
	if err != nil {
		t.Fatalf("ChangeEventFromJSON() error = %v", err)
	}
	if *parsed != *msg {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}

func TestRestoreMessageFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"transaction", `{"entity":"transaction","transaction":{"id":4,"amount":12.5,"category":"Food","note":null,"timestamp":100,"userId":"u1"}}`, false},
		{"category", `{"entity":"category","category":{"id":1,"name":"Salary","isIncome":true}}`, false},
		{"missing payload", `{"entity":"transaction"}`, true},
		{"mismatched payload", `{"entity":"category","transaction":{"id":1}}`, true},
		{"both payloads", `{"entity":"transaction","transaction":{"id":1},"category":{"id":1}}`, true},
		{"bad id type", `{"entity":"category","category":{"id":"x"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RestoreMessageFromJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("RestoreMessageFromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("error should wrap ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestTransactionRecord_ToCoreKeepsNullNote(t *testing.T) {
	msg, err := RestoreMessageFromJSON([]byte(`{"entity":"transaction","transaction":{"id":4,"remoteId":"r4","amount":12.5,"category":"Food","isIncome":true,"timestamp":100,"userId":"u1"}}`))
	if err != nil {
		t.Fatalf("RestoreMessageFromJSON() error = %v", err)
	}

	tx := msg.Transaction.ToCore()
	if tx.Note != nil {
		t.Errorf("absent note should stay nil, got %q", *tx.Note)
	}
	if tx.ID != 4 || tx.RemoteID != "r4" || tx.Amount != 12.5 || !tx.IsIncome || tx.UserID != "u1" {
		t.Errorf("ToCore() = %+v", tx)
	}
}
