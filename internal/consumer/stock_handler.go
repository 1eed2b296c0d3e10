package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"shop/internal/domain/event"
	"shop/internal/domain/product"

	"github.com/google/uuid"
)

// StockHandler applies stock decrements for OrderCreated and restores
// them for OrderDeleted. Every applied decrement is recorded as a stock
// movement so compensation works from what actually happened, not from
// what the deletion message claims.
type StockHandler struct {
	products product.Repository
	logger   *slog.Logger
}

func NewStockHandler(products product.Repository, logger *slog.Logger) *StockHandler {
	return &StockHandler{products: products, logger: logger}
}

func (h *StockHandler) HandleOrderCreated(ctx context.Context, msg event.Message) error {
	var fact event.OrderCreated
	if err := json.Unmarshal(msg.Payload, &fact); err != nil {
		return fmt.Errorf("%w: decode OrderCreated: %v", ErrPoisonMessage, err)
	}
	if fact.OrderID == "" {
		return fmt.Errorf("%w: OrderCreated without order id", ErrPoisonMessage)
	}
	if len(fact.Items) == 0 {
		return fmt.Errorf("%w: order %s has no items", ErrPoisonMessage, fact.OrderID)
	}

	// A repeated product would decrement twice but record one movement
	// (the movement key is unique per order, product and direction), so
	// compensation would under-restore. Our own producer cannot emit
	// such a fact; anything on the wire that does is poison.
	seen := make(map[string]struct{}, len(fact.Items))
	for _, line := range fact.Items {
		if line.ProductID == "" || line.Quantity <= 0 {
			return fmt.Errorf("%w: order %s has invalid line (product %q, quantity %d)",
				ErrPoisonMessage, fact.OrderID, line.ProductID, line.Quantity)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("%w: order %s lists product %s twice",
				ErrPoisonMessage, fact.OrderID, line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}

	for _, line := range fact.Items {
		err := h.products.DecrementStock(ctx, line.ProductID, line.Quantity)
		switch {
		case err == nil:
		case errors.Is(err, product.ErrInsufficientStock):
			// Business invariant violation. The surrounding transaction
			// rolls back, so decrements applied for earlier lines are
			// undone and nothing is applied at all.
			return fmt.Errorf("%w: stock of product %s would go negative (order %s needs %d)",
				ErrParkMessage, line.ProductID, fact.OrderID, line.Quantity)
		case errors.Is(err, product.ErrNotFound):
			h.logger.Error("data-integrity anomaly: product missing during decrement",
				"product_id", line.ProductID, "order_id", fact.OrderID, "message_id", msg.ID)
			continue
		default:
			return fmt.Errorf("decrement stock of %s: %w", line.ProductID, err)
		}

		if err := h.products.RecordMovement(ctx, &product.Movement{
			ID:        uuid.New().String(),
			OrderID:   fact.OrderID,
			ProductID: line.ProductID,
			Direction: product.DirectionOut,
			Quantity:  line.Quantity,
		}); err != nil {
			return fmt.Errorf("record movement for %s: %w", line.ProductID, err)
		}
	}

	h.logger.Info("stock decremented", "order_id", fact.OrderID, "items", len(fact.Items), "message_id", msg.ID)
	return nil
}

func (h *StockHandler) HandleOrderDeleted(ctx context.Context, msg event.Message) error {
	var fact event.OrderDeleted
	if err := json.Unmarshal(msg.Payload, &fact); err != nil {
		return fmt.Errorf("%w: decode OrderDeleted: %v", ErrPoisonMessage, err)
	}
	if fact.OrderID == "" {
		return fmt.Errorf("%w: OrderDeleted without order id", ErrPoisonMessage)
	}

	restored, err := h.products.MovementsForOrder(ctx, fact.OrderID, product.DirectionIn)
	if err != nil {
		return fmt.Errorf("load restore movements: %w", err)
	}
	if len(restored) > 0 {
		h.logger.Warn("stock already restored for order", "order_id", fact.OrderID, "message_id", msg.ID)
		return nil
	}

	applied, err := h.products.MovementsForOrder(ctx, fact.OrderID, product.DirectionOut)
	if err != nil {
		return fmt.Errorf("load applied movements: %w", err)
	}
	if len(applied) == 0 {
		// OrderDeleted raced ahead of OrderCreated, or the decrement was
		// itself parked. There is nothing to reverse yet; park instead
		// of guessing from the message quantities.
		return fmt.Errorf("%w: no applied stock decrement recorded for order %s",
			ErrParkMessage, fact.OrderID)
	}

	h.checkSymmetry(fact, applied, msg.ID)

	for _, mv := range applied {
		if err := h.products.IncrementStock(ctx, mv.ProductID, mv.Quantity); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				h.logger.Error("data-integrity anomaly: product missing during restore",
					"product_id", mv.ProductID, "order_id", fact.OrderID, "message_id", msg.ID)
				continue
			}
			return fmt.Errorf("restore stock of %s: %w", mv.ProductID, err)
		}

		if err := h.products.RecordMovement(ctx, &product.Movement{
			ID:        uuid.New().String(),
			OrderID:   fact.OrderID,
			ProductID: mv.ProductID,
			Direction: product.DirectionIn,
			Quantity:  mv.Quantity,
		}); err != nil {
			return fmt.Errorf("record restore movement for %s: %w", mv.ProductID, err)
		}
	}

	h.logger.Info("stock restored", "order_id", fact.OrderID, "items", len(applied), "message_id", msg.ID)
	return nil
}

// checkSymmetry compares the quantities the deletion message claims with
// the decrement that was actually applied. Restoration always uses the
// recorded movements; a mismatch is only reported.
func (h *StockHandler) checkSymmetry(fact event.OrderDeleted, applied []*product.Movement, messageID string) {
	claimed := make(map[string]int, len(fact.Items))
	for _, line := range fact.Items {
		claimed[line.ProductID] += line.Quantity
	}

	for _, mv := range applied {
		if claimed[mv.ProductID] != mv.Quantity {
			h.logger.Warn("compensation quantities differ from applied decrement",
				"order_id", fact.OrderID, "product_id", mv.ProductID,
				"claimed", claimed[mv.ProductID], "applied", mv.Quantity,
				"message_id", messageID)
		}
	}
}
