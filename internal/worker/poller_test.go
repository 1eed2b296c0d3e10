package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"shop/internal/domain/event"
	"shop/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutboxRepo struct {
	pending []*outbox.Message
	stuck   []*outbox.Message
	sent    []string

	released      []string
	stuckReleases int
}

func (f *fakeOutboxRepo) Create(_ context.Context, m *outbox.Message) error {
	f.pending = append(f.pending, m)
	return nil
}

func (f *fakeOutboxRepo) ClaimBatch(_ context.Context, limit int) ([]*outbox.Message, error) {
	n := limit
	if n > len(f.pending) {
		n = len(f.pending)
	}
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	for _, m := range batch {
		m.Status = outbox.StatusPublishing
	}
	return batch, nil
}

func (f *fakeOutboxRepo) MarkSent(_ context.Context, ids []string) error {
	f.sent = append(f.sent, ids...)
	return nil
}

func (f *fakeOutboxRepo) Release(_ context.Context, ids []string) error {
	f.released = append(f.released, ids...)
	return nil
}

func (f *fakeOutboxRepo) ReleaseStuck(context.Context) (int64, error) {
	f.stuckReleases++
	n := int64(len(f.stuck))
	for _, m := range f.stuck {
		m.Status = outbox.StatusPending
	}
	f.pending = append(f.stuck, f.pending...)
	f.stuck = nil
	return n, nil
}

func (f *fakeOutboxRepo) ListByCorrelationID(context.Context, string) ([]*outbox.Message, error) {
	return nil, nil
}

type publishCall struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	calls      []publishCall
	failTopics map[string]error
}

func (f *fakePublisher) SendMessage(_ context.Context, topic string, key, value []byte) error {
	if err, ok := f.failTopics[topic]; ok {
		return err
	}
	f.calls = append(f.calls, publishCall{topic: topic, key: string(key), value: value})
	return nil
}

func pendingMessage(id, topic, correlation string, createdAt time.Time) *outbox.Message {
	return &outbox.Message{
		ID:            id,
		Type:          event.TypeOrderCreated,
		Destination:   topic,
		Payload:       []byte(`{"orderId":"O1"}`),
		Status:        outbox.StatusPending,
		CorrelationID: correlation,
		CreatedAt:     createdAt,
	}
}

func newTestPoller(repo outbox.Repository, pub Publisher) *OutboxPoller {
	return NewOutboxPoller(repo, pub, Options{
		PollInterval: time.Millisecond,
		BatchSize:    10,
		MaxBackoff:   5 * time.Millisecond,
		Logger:       slog.Default(),
	})
}

func TestPollerMarksSentOnlyAfterAck(t *testing.T) {
	now := time.Now()
	repo := &fakeOutboxRepo{pending: []*outbox.Message{
		pendingMessage("m1", "order-created", "B1", now),
		pendingMessage("m2", "order-created", "B2", now.Add(time.Second)),
	}}
	pub := &fakePublisher{}

	failed, err := newTestPoller(repo, pub).processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, failed)

	assert.Equal(t, []string{"m1", "m2"}, repo.sent)
	assert.Empty(t, repo.released)

	require.Len(t, pub.calls, 2)
	var env event.Message
	require.NoError(t, json.Unmarshal(pub.calls[0].value, &env))
	assert.Equal(t, "m1", env.ID, "envelope carries the outbox message id, never regenerated")
	assert.Equal(t, event.TypeOrderCreated, env.Type)
	assert.Equal(t, "B1", pub.calls[0].key, "correlation id used as partition key")
	assert.JSONEq(t, `{"orderId":"O1"}`, string(env.Payload))
}

func TestPollerReleasesUnackedMessages(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []*outbox.Message{
		pendingMessage("m1", "order-created", "B1", time.Now()),
	}}
	pub := &fakePublisher{failTopics: map[string]error{"order-created": errors.New("broker unreachable")}}

	failed, err := newTestPoller(repo, pub).processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, failed)

	assert.Empty(t, repo.sent, "no ack means no sent mark")
	assert.Equal(t, []string{"m1"}, repo.released)
}

func TestPollerHoldsBackDestinationAfterFailure(t *testing.T) {
	now := time.Now()
	repo := &fakeOutboxRepo{pending: []*outbox.Message{
		pendingMessage("m1", "order-created", "B1", now),
		pendingMessage("m2", "order-created", "B1", now.Add(time.Second)),
		pendingMessage("m3", "order-deleted", "B2", now.Add(2*time.Second)),
	}}
	pub := &fakePublisher{failTopics: map[string]error{"order-created": errors.New("broker unreachable")}}

	failed, err := newTestPoller(repo, pub).processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, failed)

	// m2 must not overtake the failed m1 on the same destination, but
	// the independent destination still goes out.
	assert.ElementsMatch(t, []string{"m1", "m2"}, repo.released)
	assert.Equal(t, []string{"m3"}, repo.sent)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "order-deleted", pub.calls[0].topic)
}

func TestPollerPreservesCreatedAtOrder(t *testing.T) {
	now := time.Now()
	repo := &fakeOutboxRepo{pending: []*outbox.Message{
		pendingMessage("m1", "order-created", "B1", now),
		pendingMessage("m2", "order-created", "B1", now.Add(time.Second)),
		pendingMessage("m3", "order-created", "B1", now.Add(2*time.Second)),
	}}
	pub := &fakePublisher{}

	_, err := newTestPoller(repo, pub).processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.calls, 3)
	var ids []string
	for _, c := range pub.calls {
		var env event.Message
		require.NoError(t, json.Unmarshal(c.value, &env))
		ids = append(ids, env.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestPollerReclaimsStuckRowsOnStartup(t *testing.T) {
	now := time.Now()
	stuck := pendingMessage("m1", "order-created", "B1", now)
	stuck.Status = outbox.StatusPublishing

	repo := &fakeOutboxRepo{
		stuck:   []*outbox.Message{stuck},
		pending: []*outbox.Message{pendingMessage("m2", "order-created", "B1", now.Add(time.Second))},
	}
	pub := &fakePublisher{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, newTestPoller(repo, pub).Run(ctx))

	assert.Equal(t, 1, repo.stuckReleases)
	// The reclaimed row goes out with the rest, oldest first.
	assert.Equal(t, []string{"m1", "m2"}, repo.sent)
}

func TestPollerEmptyBatchIsQuiet(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}

	failed, err := newTestPoller(repo, pub).processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Empty(t, pub.calls)
}
