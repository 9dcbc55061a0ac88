package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage is the lightweight export notification published
// after a transaction commits. It carries only the identifiers, the worker
// fetches the full row from the store before appending it to the sheet.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates a new sync message
func NewTransactionSyncMessage(id string, seq int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON creates a message from JSON bytes
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errEmptyMessageID
	}
	return &msg, nil
}
