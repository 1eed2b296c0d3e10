package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shop/internal/domain/event"
	"shop/internal/domain/order"
	"shop/internal/domain/outbox"

	"github.com/google/uuid"
)

// OrderHandler reacts to BasketCheckedOut: it creates the order with its
// items and enqueues OrderCreated through the outbox, all inside the
// transaction opened by the runtime.
type OrderHandler struct {
	orders            order.Repository
	outbox            outbox.Repository
	orderCreatedTopic string
	producer          string
	logger            *slog.Logger
}

func NewOrderHandler(orders order.Repository, ob outbox.Repository, orderCreatedTopic string, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:            orders,
		outbox:            ob,
		orderCreatedTopic: orderCreatedTopic,
		producer:          "order-service",
		logger:            logger,
	}
}

func (h *OrderHandler) HandleBasketCheckedOut(ctx context.Context, msg event.Message) error {
	var fact event.BasketCheckedOut
	if err := json.Unmarshal(msg.Payload, &fact); err != nil {
		return fmt.Errorf("%w: decode BasketCheckedOut: %v", ErrPoisonMessage, err)
	}

	if fact.BasketID == "" {
		return fmt.Errorf("%w: BasketCheckedOut without basket id", ErrPoisonMessage)
	}
	if len(fact.Items) == 0 {
		return fmt.Errorf("%w: basket %s has no items", ErrPoisonMessage, fact.BasketID)
	}
	seen := make(map[string]struct{}, len(fact.Items))
	for _, it := range fact.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: basket %s has invalid line (product %q, quantity %d)",
				ErrPoisonMessage, fact.BasketID, it.ProductID, it.Quantity)
		}
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("%w: basket %s lists product %s twice",
				ErrPoisonMessage, fact.BasketID, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}

	// Defensive double-check beyond the inbox guard: a different
	// checkout message for the same basket must not create a second
	// order.
	existing, err := h.orders.GetByBasketID(ctx, fact.BasketID)
	if err == nil {
		h.logger.Warn("order already exists for basket",
			"basket_id", fact.BasketID, "order_id", existing.ID, "message_id", msg.ID)
		return nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return fmt.Errorf("lookup order by basket: %w", err)
	}

	now := time.Now()
	orderID := uuid.New().String()

	items := make([]*order.Item, 0, len(fact.Items))
	lines := make([]event.OrderLine, 0, len(fact.Items))
	var total float64
	for _, it := range fact.Items {
		// Quantity and price are copied verbatim from the fact; the
		// basket may already be gone.
		items = append(items, &order.Item{
			OrderID:   orderID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
		lines = append(lines, event.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
		total += float64(it.Quantity) * it.UnitPrice
	}

	o := &order.Order{
		ID:          orderID,
		BasketID:    fact.BasketID,
		UserID:      fact.UserID,
		Status:      order.StatusCreated,
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.orders.Create(ctx, o, items); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	payload, err := json.Marshal(event.OrderCreated{
		OrderID:  orderID,
		BasketID: fact.BasketID,
		Items:    lines,
	})
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}

	if err := h.outbox.Create(ctx, &outbox.Message{
		ID:            uuid.New().String(),
		Type:          event.TypeOrderCreated,
		Destination:   h.orderCreatedTopic,
		Payload:       payload,
		Status:        outbox.StatusPending,
		CorrelationID: msg.CorrelationID,
		CausationID:   msg.ID,
		Producer:      h.producer,
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("enqueue OrderCreated: %w", err)
	}

	h.logger.Info("order created",
		"order_id", orderID, "basket_id", fact.BasketID, "items", len(items), "message_id", msg.ID)
	return nil
}
