package postgres

import (
	"context"
	"errors"
	"fmt"

	"shop/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order, items []*order.Item) error {
	const orderSQL = `
		INSERT INTO orders (id, basket_id, user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	const itemSQL = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
	`

	ex := executorFrom(ctx, r.pool)

	if _, err := ex.Exec(ctx, orderSQL,
		o.ID, o.BasketID, o.UserID, o.Status, o.TotalAmount, o.CreatedAt, o.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err := ex.Exec(ctx, itemSQL, o.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	const sql = `
		SELECT id, basket_id, user_id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	return r.scanOne(ctx, sql, id)
}

func (r *OrderRepository) GetByBasketID(ctx context.Context, basketID string) (*order.Order, error) {
	const sql = `
		SELECT id, basket_id, user_id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE basket_id = $1
	`
	return r.scanOne(ctx, sql, basketID)
}

func (r *OrderRepository) scanOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	var o order.Order
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, arg).Scan(
		&o.ID, &o.BasketID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]*order.Item, error) {
	const sql = `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC
	`

	rows, err := executorFrom(ctx, r.pool).Query(ctx, sql, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []*order.Item
	for rows.Next() {
		it := &order.Item{}
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

func (r *OrderRepository) MarkDeleted(ctx context.Context, id string) error {
	const sql = `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, id, order.StatusDeleted, order.StatusCreated)
	if err != nil {
		return fmt.Errorf("mark order deleted: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := executorFrom(ctx, r.pool).QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrAlreadyDeleted
	}

	return nil
}
