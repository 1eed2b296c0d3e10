package postgres

import (
	"context"
	"fmt"

	"shop/internal/domain/parked"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ParkedRepository struct {
	pool *pgxpool.Pool
}

func NewParkedRepository(pool *pgxpool.Pool) *ParkedRepository {
	return &ParkedRepository{pool: pool}
}

// Save is idempotent per (consumer, message_id): a redelivered message
// that parks again does not produce a second row.
func (r *ParkedRepository) Save(ctx context.Context, m *parked.Message) error {
	const sql = `
		INSERT INTO parked_messages (id, consumer, message_id, message_type, reason, payload, parked_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (consumer, message_id) DO NOTHING
	`

	if _, err := executorFrom(ctx, r.pool).Exec(ctx, sql,
		m.ID, m.Consumer, m.MessageID, m.MessageType, m.Reason, m.Payload); err != nil {
		return fmt.Errorf("insert parked message: %w", err)
	}

	return nil
}
