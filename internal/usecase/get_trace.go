package usecase

import (
	"context"
	"fmt"

	"shop/internal/domain/inbox"
	"shop/internal/domain/order"
	"shop/internal/domain/outbox"
)

// TraceDTO is the out-of-band observability view of one checkout flow:
// the order plus every outbox and inbox record sharing its correlation
// ID (the basket ID).
type TraceDTO struct {
	Order  *OrderDTO         `json:"order"`
	Outbox []*outbox.Message `json:"outbox"`
	Inbox  []*inbox.Record   `json:"inbox"`
}

type GetTrace struct {
	orders     order.Repository
	outboxRepo outbox.Repository
	inboxRepo  inbox.Repository
	getOrder   *GetOrder
}

func NewGetTrace(
	orders order.Repository,
	outboxRepo outbox.Repository,
	inboxRepo inbox.Repository,
	getOrder *GetOrder,
) *GetTrace {
	return &GetTrace{
		orders:     orders,
		outboxRepo: outboxRepo,
		inboxRepo:  inboxRepo,
		getOrder:   getOrder,
	}
}

func (uc *GetTrace) Execute(ctx context.Context, orderID string) (*TraceDTO, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	dto, err := uc.getOrder.Execute(ctx, orderID)
	if err != nil {
		return nil, err
	}

	outboxMessages, err := uc.outboxRepo.ListByCorrelationID(ctx, o.BasketID)
	if err != nil {
		return nil, fmt.Errorf("list outbox by correlation: %w", err)
	}

	inboxRecords, err := uc.inboxRepo.ListByCorrelationID(ctx, o.BasketID)
	if err != nil {
		return nil, fmt.Errorf("list inbox by correlation: %w", err)
	}

	return &TraceDTO{
		Order:  dto,
		Outbox: outboxMessages,
		Inbox:  inboxRecords,
	}, nil
}
