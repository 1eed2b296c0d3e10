package postgres

import (
	"context"
	"fmt"

	"shop/internal/domain/inbox"

	"github.com/jackc/pgx/v5/pgxpool"
)

type InboxRepository struct {
	pool *pgxpool.Pool
}

func NewInboxRepository(pool *pgxpool.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// SaveIfNotExists returns true if the record was saved (message is new),
// false if this consumer already processed the message. Runs on the
// transaction injected into ctx so the guard commits or rolls back with
// the business mutation.
func (r *InboxRepository) SaveIfNotExists(ctx context.Context, consumer, messageID, messageType, correlationID string) (bool, error) {
	const sql = `
		INSERT INTO inbox_events (consumer, message_id, message_type, correlation_id, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (consumer, message_id) DO NOTHING
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, consumer, messageID, messageType, nullIfEmpty(correlationID))
	if err != nil {
		return false, fmt.Errorf("insert inbox record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *InboxRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Record, error) {
	const sql = `
		SELECT consumer, message_id, message_type, COALESCE(correlation_id, ''), processed_at
		FROM inbox_events
		WHERE correlation_id = $1
		ORDER BY processed_at ASC
	`

	rows, err := r.pool.Query(ctx, sql, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query inbox records: %w", err)
	}
	defer rows.Close()

	var records []*inbox.Record
	for rows.Next() {
		rec := &inbox.Record{}
		if err := rows.Scan(&rec.Consumer, &rec.MessageID, &rec.MessageType, &rec.CorrelationID, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan inbox record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
