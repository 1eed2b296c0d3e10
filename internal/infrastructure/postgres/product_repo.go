package postgres

import (
	"context"
	"errors"
	"fmt"

	"shop/internal/domain/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	const sql = `
		SELECT id, name, stock, updated_at
		FROM products
		WHERE id = $1
	`

	var p product.Product
	err := executorFrom(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&p.ID, &p.Name, &p.Stock, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	return &p, nil
}

// DecrementStock applies the decrement only when the row keeps stock >= 0.
// The guarded UPDATE serializes concurrent adjustments on the row lock,
// so two orders racing for the last units cannot both win.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, qty int) error {
	const sql = `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	ex := executorFrom(ctx, r.pool)

	tag, err := ex.Exec(ctx, sql, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := ex.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return product.ErrNotFound
		}
		return product.ErrInsufficientStock
	}

	return nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, productID string, qty int) error {
	const sql = `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := executorFrom(ctx, r.pool).Exec(ctx, sql, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	return nil
}

func (r *ProductRepository) RecordMovement(ctx context.Context, m *product.Movement) error {
	const sql = `
		INSERT INTO stock_movements (id, order_id, product_id, direction, quantity, applied_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (order_id, product_id, direction) DO NOTHING
	`

	if _, err := executorFrom(ctx, r.pool).Exec(ctx, sql,
		m.ID, m.OrderID, m.ProductID, m.Direction, m.Quantity); err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}

	return nil
}

func (r *ProductRepository) MovementsForOrder(ctx context.Context, orderID, direction string) ([]*product.Movement, error) {
	const sql = `
		SELECT id, order_id, product_id, direction, quantity, applied_at
		FROM stock_movements
		WHERE order_id = $1 AND direction = $2
		ORDER BY product_id ASC
	`

	rows, err := executorFrom(ctx, r.pool).Query(ctx, sql, orderID, direction)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*product.Movement
	for rows.Next() {
		m := &product.Movement{}
		if err := rows.Scan(&m.ID, &m.OrderID, &m.ProductID, &m.Direction, &m.Quantity, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}

	return movements, rows.Err()
}
