package postgres

import (
	"context"
	"fmt"

	"shop/internal/domain/outbox"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Create(ctx context.Context, m *outbox.Message) error {
	const sql = `
		INSERT INTO outbox (id, message_type, destination, payload, status, correlation_id, causation_id, producer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := executorFrom(ctx, r.pool).Exec(ctx, sql,
		m.ID, m.Type, m.Destination, m.Payload, m.Status,
		nullIfEmpty(m.CorrelationID), nullIfEmpty(m.CausationID), nullIfEmpty(m.Producer), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// ClaimBatch claims pending rows oldest-first. One dispatcher instance
// runs per database; per-destination ordering depends on that, since two
// instances claiming successive batches could publish same-destination
// rows out of created_at order. SKIP LOCKED keeps the claim from
// blocking on rows locked by manual repair sessions.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int) ([]*outbox.Message, error) {
	const sql = `
		WITH claimed AS (
			SELECT id
			FROM outbox
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox
		SET status = 'publishing'
		WHERE id IN (SELECT id FROM claimed)
		RETURNING
			id,
			message_type,
			destination,
			payload,
			status,
			COALESCE(correlation_id, ''),
			COALESCE(causation_id, ''),
			COALESCE(producer, ''),
			created_at,
			sent_at
	`

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		m := &outbox.Message{}
		if err := rows.Scan(&m.ID, &m.Type, &m.Destination, &m.Payload, &m.Status,
			&m.CorrelationID, &m.CausationID, &m.Producer, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'sent', sent_at = NOW()
		WHERE id = ANY($1)
	`
	if _, err := r.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) Release(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'pending'
		WHERE id = ANY($1)
	`
	if _, err := r.pool.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("release outbox messages: %w", err)
	}
	return nil
}

// ReleaseStuck reclaims rows left in publishing by a crashed dispatcher.
// Re-sending is safe because message IDs are stable and consumers dedup.
func (r *OutboxRepository) ReleaseStuck(ctx context.Context) (int64, error) {
	const sql = `
		UPDATE outbox
		SET status = 'pending'
		WHERE status = 'publishing'
	`
	tag, err := r.pool.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("release stuck outbox messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Message, error) {
	const sql = `
		SELECT
			id,
			message_type,
			destination,
			payload,
			status,
			COALESCE(correlation_id, ''),
			COALESCE(causation_id, ''),
			COALESCE(producer, ''),
			created_at,
			sent_at
		FROM outbox
		WHERE correlation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, sql, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query outbox by correlation_id: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		m := &outbox.Message{}
		if err := rows.Scan(&m.ID, &m.Type, &m.Destination, &m.Payload, &m.Status,
			&m.CorrelationID, &m.CausationID, &m.Producer, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
