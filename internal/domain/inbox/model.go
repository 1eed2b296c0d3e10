package inbox

import (
	"context"
	"time"
)

// Record marks a message as processed by a consumer (Inbox pattern).
// The (consumer, message_id) pair is the idempotency boundary.
type Record struct {
	Consumer      string    `json:"consumer"`
	MessageID     string    `json:"message_id"`
	MessageType   string    `json:"message_type"`
	CorrelationID string    `json:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Repository interface {
	// SaveIfNotExists inserts the record inside the caller's transaction
	// and reports whether it was new. The insert is constraint-backed,
	// not read-then-write, so concurrent duplicate deliveries race
	// safely.
	SaveIfNotExists(ctx context.Context, consumer, messageID, messageType, correlationID string) (bool, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*Record, error)
}
