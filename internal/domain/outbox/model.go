package outbox

import (
	"context"
	"time"
)

// Row states. A row is pending until the dispatcher receives a positive
// broker acknowledgment; "publishing" marks rows claimed by a dispatcher
// round so concurrent pollers skip them.
const (
	StatusPending    = "pending"
	StatusPublishing = "publishing"
	StatusSent       = "sent"
)

type Message struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Destination   string     `json:"destination"`
	Payload       []byte     `json:"payload"`
	Status        string     `json:"status"`
	CorrelationID string     `json:"correlation_id"`
	CausationID   string     `json:"causation_id"`
	Producer      string     `json:"producer"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

type Repository interface {
	// Create appends a message inside the caller's transaction. The
	// message ID is generated by the caller and never regenerated.
	Create(ctx context.Context, m *Message) error
	// ClaimBatch moves up to limit pending rows to publishing, oldest
	// first, and returns them.
	ClaimBatch(ctx context.Context, limit int) ([]*Message, error)
	// MarkSent stamps sent_at. Only called after broker acknowledgment.
	MarkSent(ctx context.Context, ids []string) error
	// Release puts claimed rows back to pending for a later retry.
	Release(ctx context.Context, ids []string) error
	// ReleaseStuck puts every publishing row back to pending. Rows stay
	// in publishing only while a dispatcher round is in flight, so any
	// row found there at dispatcher startup belongs to a crashed run.
	ReleaseStuck(ctx context.Context) (int64, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*Message, error)
}
