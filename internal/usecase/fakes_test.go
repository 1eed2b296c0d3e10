package usecase

import (
	"context"

	"shop/internal/domain/basket"
	"shop/internal/domain/order"
	"shop/internal/domain/outbox"
)

// fakeTx rolls the outbox back on error, which is the property the
// checkout and delete paths lean on: the fact and the state change
// commit or vanish together.
type fakeTx struct {
	outbox *fakeOutbox
}

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	mark := len(t.outbox.messages)
	if err := fn(ctx); err != nil {
		t.outbox.messages = t.outbox.messages[:mark]
		return err
	}
	return nil
}

type fakeOutbox struct {
	messages []*outbox.Message
}

func (f *fakeOutbox) Create(_ context.Context, m *outbox.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeOutbox) ClaimBatch(context.Context, int) ([]*outbox.Message, error) { return nil, nil }

func (f *fakeOutbox) MarkSent(context.Context, []string) error { return nil }

func (f *fakeOutbox) Release(context.Context, []string) error { return nil }

func (f *fakeOutbox) ReleaseStuck(context.Context) (int64, error) { return 0, nil }

func (f *fakeOutbox) ListByCorrelationID(context.Context, string) ([]*outbox.Message, error) {
	return f.messages, nil
}

type fakeBasketRepo struct {
	baskets map[string]*basket.Basket
	items   map[string][]*basket.Item
}

func newFakeBasketRepo() *fakeBasketRepo {
	return &fakeBasketRepo{
		baskets: map[string]*basket.Basket{},
		items:   map[string][]*basket.Item{},
	}
}

func (f *fakeBasketRepo) GetByID(_ context.Context, id string) (*basket.Basket, error) {
	b, ok := f.baskets[id]
	if !ok {
		return nil, basket.ErrNotFound
	}
	return b, nil
}

func (f *fakeBasketRepo) ListItems(_ context.Context, basketID string) ([]*basket.Item, error) {
	return f.items[basketID], nil
}

func (f *fakeBasketRepo) MarkCheckedOut(_ context.Context, id string) error {
	b, ok := f.baskets[id]
	if !ok {
		return basket.ErrNotFound
	}
	if b.Status != basket.StatusOpen {
		return basket.ErrAlreadyCheckedOut
	}
	b.Status = basket.StatusCheckedOut
	return nil
}

type fakeOrderRepo struct {
	orders map[string]*order.Order
	items  map[string][]*order.Item
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: map[string]*order.Order{},
		items:  map[string][]*order.Item{},
	}
}

func (f *fakeOrderRepo) Create(_ context.Context, o *order.Order, items []*order.Item) error {
	f.orders[o.ID] = o
	f.items[o.ID] = items
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) GetByBasketID(_ context.Context, basketID string) (*order.Order, error) {
	for _, o := range f.orders {
		if o.BasketID == basketID {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrderRepo) ListItems(_ context.Context, orderID string) ([]*order.Item, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderRepo) MarkDeleted(_ context.Context, id string) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status == order.StatusDeleted {
		return order.ErrAlreadyDeleted
	}
	o.Status = order.StatusDeleted
	return nil
}
