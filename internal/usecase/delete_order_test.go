package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"shop/internal/domain/event"
	"shop/internal/domain/order"
	"shop/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(repo *fakeOrderRepo, id, basketID, status string, items ...*order.Item) {
	repo.orders[id] = &order.Order{ID: id, BasketID: basketID, UserID: "U1", Status: status}
	repo.items[id] = items
}

func TestDeleteOrderEnqueuesFactWithMirroredQuantities(t *testing.T) {
	orders := newFakeOrderRepo()
	seedOrder(orders, "O1", "B1", order.StatusCreated,
		&order.Item{OrderID: "O1", ProductID: "P1", Quantity: 2, UnitPrice: 10},
		&order.Item{OrderID: "O1", ProductID: "P2", Quantity: 1, UnitPrice: 4},
	)
	ob := &fakeOutbox{}
	uc := NewDeleteOrder(&fakeTx{outbox: ob}, orders, ob, "order-deleted")

	require.NoError(t, uc.Execute(context.Background(), "O1"))

	assert.Equal(t, order.StatusDeleted, orders.orders["O1"].Status)

	require.Len(t, ob.messages, 1)
	m := ob.messages[0]
	assert.Equal(t, event.TypeOrderDeleted, m.Type)
	assert.Equal(t, "order-deleted", m.Destination)
	assert.Equal(t, outbox.StatusPending, m.Status)
	assert.Equal(t, "B1", m.CorrelationID, "deletion joins the basket's flow")
	assert.Equal(t, "order-service", m.Producer)

	var fact event.OrderDeleted
	require.NoError(t, json.Unmarshal(m.Payload, &fact))
	assert.Equal(t, "O1", fact.OrderID)
	assert.Equal(t, []event.OrderLine{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}, fact.Items)
}

func TestDeleteOrderAlreadyDeletedRollsBack(t *testing.T) {
	orders := newFakeOrderRepo()
	seedOrder(orders, "O1", "B1", order.StatusDeleted,
		&order.Item{OrderID: "O1", ProductID: "P1", Quantity: 2, UnitPrice: 10},
	)
	ob := &fakeOutbox{}
	uc := NewDeleteOrder(&fakeTx{outbox: ob}, orders, ob, "order-deleted")

	err := uc.Execute(context.Background(), "O1")
	assert.ErrorIs(t, err, order.ErrAlreadyDeleted)
	assert.Empty(t, ob.messages, "no duplicate compensation fact")
}

func TestDeleteOrderNotFound(t *testing.T) {
	ob := &fakeOutbox{}
	uc := NewDeleteOrder(&fakeTx{outbox: ob}, newFakeOrderRepo(), ob, "order-deleted")

	err := uc.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Empty(t, ob.messages)
}
