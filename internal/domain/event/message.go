package event

import (
	"encoding/json"
	"time"
)

// Fact types exchanged between the basket, order and product services.
const (
	TypeBasketCheckedOut = "BasketCheckedOut"
	TypeOrderCreated     = "OrderCreated"
	TypeOrderDeleted     = "OrderDeleted"
)

// Message is the envelope published to Kafka.
// Payload is kept as raw JSON produced by the originating service.
type Message struct {
	ID            string          `json:"messageId"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// Key returns the Kafka partition key for the message. Messages of the
// same flow share a key so the broker preserves their relative order.
func (m Message) Key() []byte {
	if m.CorrelationID != "" {
		return []byte(m.CorrelationID)
	}
	return []byte(m.ID)
}
