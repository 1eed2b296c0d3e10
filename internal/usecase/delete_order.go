package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop/internal/domain/event"
	"shop/internal/domain/order"
	"shop/internal/domain/outbox"
	"shop/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

// DeleteOrder soft-deletes an order and enqueues the OrderDeleted fact
// with the order's item quantities, in one transaction. The product
// service compensates stock from its own recorded decrements; the
// quantities here travel along for the symmetry check.
type DeleteOrder struct {
	txManager  postgres.Transactor
	orders     order.Repository
	outboxRepo outbox.Repository
	topic      string
}

func NewDeleteOrder(
	txManager postgres.Transactor,
	orders order.Repository,
	outboxRepo outbox.Repository,
	topic string,
) *DeleteOrder {
	return &DeleteOrder{
		txManager:  txManager,
		orders:     orders,
		outboxRepo: outboxRepo,
		topic:      topic,
	}
}

func (uc *DeleteOrder) Execute(ctx context.Context, orderID string) error {
	return uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orders.GetByID(txCtx, orderID)
		if err != nil {
			return err
		}

		items, err := uc.orders.ListItems(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		if err := uc.orders.MarkDeleted(txCtx, orderID); err != nil {
			return err
		}

		lines := make([]event.OrderLine, 0, len(items))
		for _, it := range items {
			lines = append(lines, event.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		payload, err := json.Marshal(event.OrderDeleted{
			OrderID: orderID,
			Items:   lines,
		})
		if err != nil {
			return fmt.Errorf("marshal OrderDeleted: %w", err)
		}

		return uc.outboxRepo.Create(txCtx, &outbox.Message{
			ID:            uuid.New().String(),
			Type:          event.TypeOrderDeleted,
			Destination:   uc.topic,
			Payload:       payload,
			Status:        outbox.StatusPending,
			CorrelationID: o.BasketID,
			Producer:      "order-service",
			CreatedAt:     time.Now(),
		})
	})
}
