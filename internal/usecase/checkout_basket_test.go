package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"shop/internal/domain/basket"
	"shop/internal/domain/event"
	"shop/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBasket(repo *fakeBasketRepo, id, userID, status string, items ...*basket.Item) {
	repo.baskets[id] = &basket.Basket{ID: id, UserID: userID, Status: status}
	repo.items[id] = items
}

func TestCheckoutBasketEnqueuesFactWithStateChange(t *testing.T) {
	baskets := newFakeBasketRepo()
	seedBasket(baskets, "B1", "U1", basket.StatusOpen,
		&basket.Item{BasketID: "B1", ProductID: "P1", Quantity: 3, UnitPrice: 10},
		&basket.Item{BasketID: "B1", ProductID: "P2", Quantity: 1, UnitPrice: 4.5},
	)
	ob := &fakeOutbox{}
	uc := NewCheckoutBasket(&fakeTx{outbox: ob}, baskets, ob, "basket-checked-out")

	messageID, err := uc.Execute(context.Background(), "B1")
	require.NoError(t, err)
	require.NotEmpty(t, messageID)

	assert.Equal(t, basket.StatusCheckedOut, baskets.baskets["B1"].Status)

	require.Len(t, ob.messages, 1)
	m := ob.messages[0]
	assert.Equal(t, messageID, m.ID)
	assert.Equal(t, event.TypeBasketCheckedOut, m.Type)
	assert.Equal(t, "basket-checked-out", m.Destination)
	assert.Equal(t, outbox.StatusPending, m.Status)
	assert.Equal(t, "B1", m.CorrelationID, "basket id correlates the whole flow")
	assert.Equal(t, "basket-service", m.Producer)
	assert.Nil(t, m.SentAt)

	var fact event.BasketCheckedOut
	require.NoError(t, json.Unmarshal(m.Payload, &fact))
	assert.Equal(t, "B1", fact.BasketID)
	assert.Equal(t, "U1", fact.UserID)
	assert.Equal(t, []event.BasketLine{
		{ProductID: "P1", Quantity: 3, UnitPrice: 10},
		{ProductID: "P2", Quantity: 1, UnitPrice: 4.5},
	}, fact.Items)
}

func TestCheckoutBasketEmptyBasketFailsWithoutFact(t *testing.T) {
	baskets := newFakeBasketRepo()
	seedBasket(baskets, "B1", "U1", basket.StatusOpen)
	ob := &fakeOutbox{}
	uc := NewCheckoutBasket(&fakeTx{outbox: ob}, baskets, ob, "basket-checked-out")

	_, err := uc.Execute(context.Background(), "B1")
	assert.ErrorIs(t, err, basket.ErrEmpty)
	assert.Equal(t, basket.StatusOpen, baskets.baskets["B1"].Status)
	assert.Empty(t, ob.messages)
}

func TestCheckoutBasketAlreadyCheckedOutRollsBack(t *testing.T) {
	baskets := newFakeBasketRepo()
	seedBasket(baskets, "B1", "U1", basket.StatusCheckedOut,
		&basket.Item{BasketID: "B1", ProductID: "P1", Quantity: 1, UnitPrice: 2},
	)
	ob := &fakeOutbox{}
	uc := NewCheckoutBasket(&fakeTx{outbox: ob}, baskets, ob, "basket-checked-out")

	_, err := uc.Execute(context.Background(), "B1")
	assert.ErrorIs(t, err, basket.ErrAlreadyCheckedOut)
	assert.Empty(t, ob.messages, "no duplicate fact for a repeated checkout")
}

func TestCheckoutBasketNotFound(t *testing.T) {
	ob := &fakeOutbox{}
	uc := NewCheckoutBasket(&fakeTx{outbox: ob}, newFakeBasketRepo(), ob, "basket-checked-out")

	_, err := uc.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, basket.ErrNotFound)
	assert.Empty(t, ob.messages)
}
