package parked

import (
	"context"
	"time"
)

// Message is a delivery set aside because processing it cannot succeed
// by retrying: a business invariant would be violated, or a referenced
// aggregate is not there yet. Parked rows wait for manual repair or an
// out-of-scope fulfillment policy.
type Message struct {
	ID          string    `json:"id"`
	Consumer    string    `json:"consumer"`
	MessageID   string    `json:"message_id"`
	MessageType string    `json:"message_type"`
	Reason      string    `json:"reason"`
	Payload     []byte    `json:"payload"`
	ParkedAt    time.Time `json:"parked_at"`
}

type Repository interface {
	Save(ctx context.Context, m *Message) error
}
