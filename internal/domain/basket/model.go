package basket

import (
	"context"
	"errors"
	"time"
)

const (
	StatusOpen       = "OPEN"
	StatusCheckedOut = "CHECKED_OUT"
)

var (
	ErrNotFound          = errors.New("basket not found")
	ErrAlreadyCheckedOut = errors.New("basket already checked out")
	ErrEmpty             = errors.New("basket has no items")
)

type Basket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	BasketID  string  `json:"basket_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Basket, error)
	ListItems(ctx context.Context, basketID string) ([]*Item, error)
	// MarkCheckedOut transitions an OPEN basket to CHECKED_OUT.
	MarkCheckedOut(ctx context.Context, id string) error
}
