package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Entity names carried by change events and restore records.
const (
	EntityTransaction = "transaction"
	EntityCategory    = "category"
)

var ErrInvalidMessage = errors.New("invalid message")

// ChangeEvent announces a committed mutation to the remote sync side. It
// carries identities only; consumers read the row back if they need it.
type ChangeEvent struct {
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	RemoteID  string    `json:"remoteId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeEvent(entity, op string, id int64, remoteID string) *ChangeEvent {
	return &ChangeEvent{
		Entity:    entity,
		Op:        op,
		ID:        id,
		RemoteID:  remoteID,
		Timestamp: time.Now(),
	}
}

func (m *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var msg ChangeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// TransactionRecord is the wire form of a transaction in a restore message.
type TransactionRecord struct {
	ID        int64   `json:"id"`
	RemoteID  string  `json:"remoteId"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Note      *string `json:"note"`
	IsIncome  bool    `json:"isIncome"`
	Timestamp int64   `json:"timestamp"`
	UserID    string  `json:"userId"`
}

func (r TransactionRecord) ToCore() core.Transaction {
	return core.Transaction{
		ID:        r.ID,
		RemoteID:  r.RemoteID,
		Amount:    r.Amount,
		Category:  r.Category,
		Note:      r.Note,
		IsIncome:  r.IsIncome,
		Timestamp: r.Timestamp,
		UserID:    r.UserID,
	}
}

type CategoryRecord struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsIncome bool   `json:"isIncome"`
}

func (r CategoryRecord) ToCore() core.Category {
	return core.Category{ID: r.ID, Name: r.Name, IsIncome: r.IsIncome}
}

// RestoreMessage carries one record pulled from the remote side. Exactly one
// of Transaction or Category is set, matching Entity.
type RestoreMessage struct {
	Entity      string             `json:"entity"`
	Transaction *TransactionRecord `json:"transaction,omitempty"`
	Category    *CategoryRecord    `json:"category,omitempty"`
}

func (m *RestoreMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RestoreMessageFromJSON decodes and shape-checks a restore message.
func RestoreMessageFromJSON(data []byte) (*RestoreMessage, error) {
	var msg RestoreMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch msg.Entity {
	case EntityTransaction:
		if msg.Transaction == nil || msg.Category != nil {
			return nil, fmt.Errorf("%w: transaction record expected", ErrInvalidMessage)
		}
	case EntityCategory:
		if msg.Category == nil || msg.Transaction != nil {
			return nil, fmt.Errorf("%w: category record expected", ErrInvalidMessage)
		}
	default:
		return nil, fmt.Errorf("%w: unknown entity %q", ErrInvalidMessage, msg.Entity)
	}
	return &msg, nil
}
