package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop/internal/domain/order"

	"github.com/redis/go-redis/v9"
)

type OrderItemDTO struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderDTO struct {
	ID          string         `json:"id"`
	BasketID    string         `json:"basket_id"`
	UserID      string         `json:"user_id"`
	Status      string         `json:"status"`
	TotalAmount float64        `json:"total_amount"`
	Items       []OrderItemDTO `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
}

// GetOrder reads an order through a short-lived Redis cache. The cache
// is best effort; any Redis failure falls through to the database.
type GetOrder struct {
	redisClient *redis.Client
	orders      order.Repository
}

func NewGetOrder(redisClient *redis.Client, orders order.Repository) *GetOrder {
	return &GetOrder{
		redisClient: redisClient,
		orders:      orders,
	}
}

func (uc *GetOrder) Execute(ctx context.Context, orderID string) (*OrderDTO, error) {
	cacheKey := fmt.Sprintf("order:%s", orderID)

	if uc.redisClient != nil {
		val, err := uc.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var dto OrderDTO
			if err := json.Unmarshal([]byte(val), &dto); err == nil {
				return &dto, nil
			}
		}
	}

	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := uc.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	dto := &OrderDTO{
		ID:          o.ID,
		BasketID:    o.BasketID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
	}
	for _, it := range items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	if uc.redisClient != nil {
		data, _ := json.Marshal(dto)
		// Short TTL so consumers see status changes quickly
		uc.redisClient.Set(ctx, cacheKey, data, 2*time.Second)
	}

	return dto, nil
}
