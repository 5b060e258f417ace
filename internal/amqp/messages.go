package amqp

import (
	"encoding/json"
	"time"

	"gagyebu/internal/core"
)

// TransactionGeneratedMessage announces one scheduler-created transaction.
// Consumers fetch the full row from the database; the message carries the
// keys only.
type TransactionGeneratedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id"`
	Date          core.Date `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionGeneratedMessage creates a message for one occurrence
func NewTransactionGeneratedMessage(txID, ruleID int64, date core.Date) *TransactionGeneratedMessage {
	return &TransactionGeneratedMessage{
		TransactionID: txID,
		RuleID:        ruleID,
		Date:          date,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionGeneratedMessageFromJSON creates a message from JSON bytes
func TransactionGeneratedMessageFromJSON(data []byte) (*TransactionGeneratedMessage, error) {
	var msg TransactionGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
