package product

import (
	"context"
	"errors"
	"time"
)

// Movement directions. "out" is a decrement applied for an order,
// "in" is the compensating restore after the order was deleted.
const (
	DirectionOut = "out"
	DirectionIn  = "in"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Movement records a stock change applied for an order. Compensation
// restores from these rows, not from the incoming message, so it stays
// exact even if the order was edited between creation and deletion.
type Movement struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Direction string    `json:"direction"`
	Quantity  int       `json:"quantity"`
	AppliedAt time.Time `json:"applied_at"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// DecrementStock subtracts qty from the product's stock. It returns
	// ErrInsufficientStock when the result would go negative, leaving
	// the row untouched.
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncrementStock(ctx context.Context, productID string, qty int) error
	RecordMovement(ctx context.Context, m *Movement) error
	MovementsForOrder(ctx context.Context, orderID, direction string) ([]*Movement, error)
}
