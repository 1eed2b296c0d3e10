package consumer

import (
	"context"
	"errors"

	"shop/internal/domain/order"
	"shop/internal/domain/outbox"
	"shop/internal/domain/parked"
	"shop/internal/domain/product"

	kafkago "github.com/segmentio/kafka-go"
)

// fakeTx emulates transactional semantics for the in-memory stores: on
// handler error every registered store is rolled back to its snapshot.
type snapshotter interface {
	snapshot() any
	restore(any)
}

type fakeTx struct {
	stores []snapshotter
}

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snaps := make([]any, len(t.stores))
	for i, s := range t.stores {
		snaps[i] = s.snapshot()
	}
	if err := fn(ctx); err != nil {
		for i, s := range t.stores {
			s.restore(snaps[i])
		}
		return err
	}
	return nil
}

type fakeInbox struct {
	seen map[string]bool
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{seen: map[string]bool{}}
}

func (f *fakeInbox) SaveIfNotExists(_ context.Context, consumer, messageID, _, _ string) (bool, error) {
	key := consumer + "|" + messageID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeInbox) snapshot() any {
	cp := make(map[string]bool, len(f.seen))
	for k, v := range f.seen {
		cp[k] = v
	}
	return cp
}

func (f *fakeInbox) restore(s any) { f.seen = s.(map[string]bool) }

type fakeParked struct {
	messages  []*parked.Message
	failTimes int
}

func (f *fakeParked) Save(_ context.Context, m *parked.Message) error {
	if f.failTimes > 0 {
		f.failTimes--
		return errors.New("store timeout")
	}
	for _, p := range f.messages {
		if p.Consumer == m.Consumer && p.MessageID == m.MessageID {
			return nil
		}
	}
	f.messages = append(f.messages, m)
	return nil
}

// fakeBroker hands out queued messages and cancels the context when the
// queue drains, so Runtime.Run terminates.
type fakeBroker struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	cancel    context.CancelFunc
}

func (f *fakeBroker) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		return kafkago.Message{}, context.Canceled
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeBroker) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

type sentMessage struct {
	topic string
	key   []byte
	value []byte
}

type fakePublisher struct {
	sent []sentMessage
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

type fakeOrderRepo struct {
	orders   map[string]*order.Order
	items    map[string][]*order.Item
	byBasket map[string]string
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   map[string]*order.Order{},
		items:    map[string][]*order.Item{},
		byBasket: map[string]string{},
	}
}

func (f *fakeOrderRepo) Create(_ context.Context, o *order.Order, items []*order.Item) error {
	f.orders[o.ID] = o
	f.items[o.ID] = items
	f.byBasket[o.BasketID] = o.ID
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
	id, ok := f.byBasket[basketID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return f.orders[id], nil
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

type fakeOutbox struct {
	messages []*outbox.Message
}

func (f *fakeOutbox) Create(_ context.Context, m *outbox.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeOutbox) ClaimBatch(context.Context, int) ([]*outbox.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOutbox) MarkSent(context.Context, []string) error { return nil }

func (f *fakeOutbox) Release(context.Context, []string) error { return nil }

func (f *fakeOutbox) ReleaseStuck(context.Context) (int64, error) { return 0, nil }

func (f *fakeOutbox) ListByCorrelationID(context.Context, string) ([]*outbox.Message, error) {
	return f.messages, nil
}

type fakeProductRepo struct {
	stock     map[string]int
	movements []*product.Movement
}

func newFakeProductRepo(stock map[string]int) *fakeProductRepo {
	return &fakeProductRepo{stock: stock}
}

func (f *fakeProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	s, ok := f.stock[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &product.Product{ID: id, Stock: s}, nil
}

func (f *fakeProductRepo) DecrementStock(_ context.Context, productID string, qty int) error {
	s, ok := f.stock[productID]
	if !ok {
		return product.ErrNotFound
	}
	if s < qty {
		return product.ErrInsufficientStock
	}
	f.stock[productID] = s - qty
	return nil
}

func (f *fakeProductRepo) IncrementStock(_ context.Context, productID string, qty int) error {
	if _, ok := f.stock[productID]; !ok {
		return product.ErrNotFound
	}
	f.stock[productID] += qty
	return nil
}

func (f *fakeProductRepo) RecordMovement(_ context.Context, m *product.Movement) error {
	for _, existing := range f.movements {
		if existing.OrderID == m.OrderID && existing.ProductID == m.ProductID && existing.Direction == m.Direction {
			return nil
		}
	}
	f.movements = append(f.movements, m)
	return nil
}

func (f *fakeProductRepo) MovementsForOrder(_ context.Context, orderID, direction string) ([]*product.Movement, error) {
	var out []*product.Movement
	for _, m := range f.movements {
		if m.OrderID == orderID && m.Direction == direction {
			out = append(out, m)
		}
	}
	return out, nil
}

type productState struct {
	stock     map[string]int
	movements []*product.Movement
}

func (f *fakeProductRepo) snapshot() any {
	cp := make(map[string]int, len(f.stock))
	for k, v := range f.stock {
		cp[k] = v
	}
	return productState{stock: cp, movements: append([]*product.Movement(nil), f.movements...)}
}

func (f *fakeProductRepo) restore(s any) {
	st := s.(productState)
	f.stock = st.stock
	f.movements = st.movements
}
