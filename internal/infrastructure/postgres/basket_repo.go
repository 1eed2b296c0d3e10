package postgres

import (
	"context"
	"errors"
	"fmt"

	"shop/internal/domain/basket"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BasketRepository struct {
	pool *pgxpool.Pool
}

func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

func (r *BasketRepository) GetByID(ctx context.Context, id string) (*basket.Basket, error) {
	const sql = `
		SELECT id, user_id, status, created_at, updated_at
		FROM baskets
		WHERE id = $1
	`

	var b basket.Basket
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, id).Scan(
		&b.ID, &b.UserID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, basket.ErrNotFound
		}
		return nil, fmt.Errorf("get basket by id: %w", err)
	}

	return &b, nil
}

func (r *BasketRepository) ListItems(ctx context.Context, basketID string) ([]*basket.Item, error) {
	const sql = `
		SELECT basket_id, product_id, quantity, unit_price
		FROM basket_items
		WHERE basket_id = $1
		ORDER BY product_id ASC
	`

	rows, err := executorFrom(ctx, r.pool).Query(ctx, sql, basketID)
	if err != nil {
		return nil, fmt.Errorf("query basket items: %w", err)
	}
	defer rows.Close()

	var items []*basket.Item
	for rows.Next() {
		it := &basket.Item{}
		if err := rows.Scan(&it.BasketID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan basket item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func (r *BasketRepository) MarkCheckedOut(ctx context.Context, id string) error {
	const sql = `
		UPDATE baskets
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, id, basket.StatusCheckedOut, basket.StatusOpen)
	if err != nil {
		return fmt.Errorf("mark basket checked out: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := executorFrom(ctx, r.pool).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM baskets WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check basket exists: %w", err)
		}
		if !exists {
			return basket.ErrNotFound
		}
		return basket.ErrAlreadyCheckedOut
	}

	return nil
}
