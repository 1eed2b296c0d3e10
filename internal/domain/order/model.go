package order

import (
	"context"
	"errors"
	"time"
)

const (
	StatusCreated = "CREATED"
	StatusDeleted = "DELETED"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrAlreadyDeleted = errors.New("order already deleted")
)

type Order struct {
	ID          string    `json:"id"`
	BasketID    string    `json:"basket_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item quantities and prices are copied verbatim from the checkout fact.
// The basket may already be gone by the time the order is read.
type Item struct {
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Repository interface {
	Create(ctx context.Context, o *Order, items []*Item) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByBasketID(ctx context.Context, basketID string) (*Order, error)
	ListItems(ctx context.Context, orderID string) ([]*Item, error)
	// MarkDeleted transitions a CREATED order to DELETED. There is no
	// path back; re-ordering requires a new basket checkout.
	MarkDeleted(ctx context.Context, id string) error
}
