package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop/internal/domain/basket"
	"shop/internal/domain/event"
	"shop/internal/domain/outbox"
	"shop/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

// CheckoutBasket marks a basket checked out and appends the
// BasketCheckedOut fact to the outbox in one transaction. The fact and
// the state change commit or roll back together; no broker call happens
// on this path.
type CheckoutBasket struct {
	txManager  postgres.Transactor
	baskets    basket.Repository
	outboxRepo outbox.Repository
	topic      string
}

func NewCheckoutBasket(
	txManager postgres.Transactor,
	baskets basket.Repository,
	outboxRepo outbox.Repository,
	topic string,
) *CheckoutBasket {
	return &CheckoutBasket{
		txManager:  txManager,
		baskets:    baskets,
		outboxRepo: outboxRepo,
		topic:      topic,
	}
}

// Execute returns the outbox message ID of the enqueued fact.
func (uc *CheckoutBasket) Execute(ctx context.Context, basketID string) (string, error) {
	messageID := uuid.New().String()

	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		b, err := uc.baskets.GetByID(txCtx, basketID)
		if err != nil {
			return err
		}

		items, err := uc.baskets.ListItems(txCtx, basketID)
		if err != nil {
			return fmt.Errorf("list basket items: %w", err)
		}
		if len(items) == 0 {
			return basket.ErrEmpty
		}

		if err := uc.baskets.MarkCheckedOut(txCtx, basketID); err != nil {
			return err
		}

		lines := make([]event.BasketLine, 0, len(items))
		for _, it := range items {
			lines = append(lines, event.BasketLine{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}

		payload, err := json.Marshal(event.BasketCheckedOut{
			BasketID: b.ID,
			UserID:   b.UserID,
			Items:    lines,
		})
		if err != nil {
			return fmt.Errorf("marshal BasketCheckedOut: %w", err)
		}

		return uc.outboxRepo.Create(txCtx, &outbox.Message{
			ID:            messageID,
			Type:          event.TypeBasketCheckedOut,
			Destination:   uc.topic,
			Payload:       payload,
			Status:        outbox.StatusPending,
			CorrelationID: b.ID,
			Producer:      "basket-service",
			CreatedAt:     time.Now(),
		})
	})
	if err != nil {
		return "", err
	}

	return messageID, nil
}
