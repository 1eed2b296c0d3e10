package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shop/internal/domain/event"
	"shop/internal/domain/parked"
	"shop/internal/infrastructure/postgres"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	kafkago "github.com/segmentio/kafka-go"
)

var (
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_processed_total",
		Help: "Messages processed successfully, by consumer",
	}, []string{"consumer"})
	duplicatesAbsorbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_duplicates_absorbed_total",
		Help: "Redeliveries absorbed by the inbox guard, by consumer",
	}, []string{"consumer"})
	messagesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_dead_lettered_total",
		Help: "Poison messages moved to the dead-letter topic, by consumer",
	}, []string{"consumer"})
	messagesParked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_parked_total",
		Help: "Messages parked on business invariant violations, by consumer",
	}, []string{"consumer"})
	processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_processing_duration_seconds",
		Help:    "Time taken to process one message",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"consumer"})
)

// HandlerFunc performs the business mutation for one fact. It runs on
// the same transaction as the inbox insert; returning an error rolls
// both back.
type HandlerFunc func(ctx context.Context, msg event.Message) error

// Registry maps a fact type to its handler. Unregistered types are
// acknowledged and skipped.
type Registry map[string]HandlerFunc

// Broker is the reading side of the message transport.
type Broker interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Publisher is the writing side, used for the dead-letter topic.
type Publisher interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

type Options struct {
	Name             string
	Broker           Broker
	Tx               postgres.Transactor
	Inbox            InboxGuard
	Parked           parked.Repository
	DeadLetters      Publisher
	DeadLetterTopic  string
	Registry         Registry
	MaxPoisonRetries int
	RetryBackoff     time.Duration
	MaxBackoff       time.Duration
	Logger           *slog.Logger
}

// InboxGuard is the deduplication insert, satisfied by the postgres
// inbox repository.
type InboxGuard interface {
	SaveIfNotExists(ctx context.Context, consumer, messageID, messageType, correlationID string) (bool, error)
}

// Runtime is the long-lived worker loop shared by all consumers: fetch,
// guard, dispatch, classify failure, acknowledge.
type Runtime struct {
	opts   Options
	logger *slog.Logger
}

func NewRuntime(opts Options) *Runtime {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.MaxPoisonRetries <= 0 {
		opts.MaxPoisonRetries = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{opts: opts, logger: logger.With("consumer", opts.Name)}
}

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("consumer started")

	for {
		msg, err := r.opts.Broker.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("consumer stopping")
				return nil
			}
			r.logger.Error("fetch message failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		r.process(ctx, msg)
	}
}

func (r *Runtime) process(ctx context.Context, msg kafkago.Message) {
	started := time.Now()

	var ev event.Message
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Not our envelope. Dead-letter it so nothing is silently
		// dropped, then move on.
		r.deadLetter(ctx, msg.Key, msg.Value, fmt.Sprintf("malformed envelope: %v", err))
		r.commit(ctx, msg)
		return
	}

	handler, ok := r.opts.Registry[ev.Type]
	if !ok {
		r.commit(ctx, msg)
		return
	}

	attempt := 0
	backoff := r.opts.RetryBackoff

	for {
		err := r.handleOnce(ctx, ev, handler)
		if err == nil {
			r.commit(ctx, msg)
			messagesProcessed.WithLabelValues(r.opts.Name).Inc()
			processingDuration.WithLabelValues(r.opts.Name).Observe(time.Since(started).Seconds())
			return
		}

		if errors.Is(err, ErrParkMessage) {
			// Retrying cannot change the outcome; park durably and ack.
			// The inbox insert rolled back with the handler, so the
			// message can be re-driven after manual repair.
			parkErr := r.park(ctx, ev, msg.Value, err)
			if parkErr == nil {
				r.commit(ctx, msg)
				return
			}
			// The parked row must exist before the ack, or the message
			// is gone: no inbox row, no redelivery. Treat the store
			// failure as transient and re-drive.
			err = parkErr
		}

		if errors.Is(err, ErrPoisonMessage) {
			attempt++
			if attempt > r.opts.MaxPoisonRetries {
				r.logger.Error("dead-lettering poison message",
					"message_id", ev.ID, "type", ev.Type, "attempts", attempt, "error", err,
					"payload", string(msg.Value))
				r.deadLetter(ctx, ev.Key(), msg.Value, err.Error())
				r.commit(ctx, msg)
				return
			}
		}

		// Transient failures retry indefinitely with capped backoff.
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("processing failed, retrying",
			"message_id", ev.ID, "type", ev.Type, "backoff", backoff, "error", err)
		time.Sleep(backoff)
		if backoff *= 2; backoff > r.opts.MaxBackoff {
			backoff = r.opts.MaxBackoff
		}
	}
}

// handleOnce runs the inbox guard and the handler in one transaction.
// Only after that transaction commits does the caller acknowledge the
// broker, so a crash in between is healed by redelivery + dedup.
func (r *Runtime) handleOnce(ctx context.Context, ev event.Message, handler HandlerFunc) error {
	return r.opts.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := r.opts.Inbox.SaveIfNotExists(txCtx, r.opts.Name, ev.ID, ev.Type, ev.CorrelationID)
		if err != nil {
			return fmt.Errorf("inbox insert: %w", err)
		}
		if !fresh {
			duplicatesAbsorbed.WithLabelValues(r.opts.Name).Inc()
			r.logger.Info("duplicate delivery absorbed", "message_id", ev.ID, "type", ev.Type)
			return nil
		}
		return handler(txCtx, ev)
	})
}

func (r *Runtime) park(ctx context.Context, ev event.Message, raw []byte, cause error) error {
	p := &parked.Message{
		ID:          uuid.New().String(),
		Consumer:    r.opts.Name,
		MessageID:   ev.ID,
		MessageType: ev.Type,
		Reason:      cause.Error(),
		Payload:     raw,
	}
	if err := r.opts.Parked.Save(ctx, p); err != nil {
		return fmt.Errorf("save parked message: %w", err)
	}
	messagesParked.WithLabelValues(r.opts.Name).Inc()
	r.logger.Error("ALERT: message parked",
		"message_id", ev.ID, "type", ev.Type, "reason", cause.Error())
	return nil
}

func (r *Runtime) deadLetter(ctx context.Context, key, value []byte, reason string) {
	if r.opts.DeadLetters == nil {
		r.logger.Error("no dead-letter publisher configured, message logged only",
			"reason", reason, "payload", string(value))
		return
	}
	if err := r.opts.DeadLetters.SendMessage(ctx, r.opts.DeadLetterTopic, key, value); err != nil {
		r.logger.Error("failed to publish to dead-letter topic",
			"reason", reason, "error", err, "payload", string(value))
		return
	}
	messagesDeadLettered.WithLabelValues(r.opts.Name).Inc()
}

func (r *Runtime) commit(ctx context.Context, msg kafkago.Message) {
	if err := r.opts.Broker.CommitMessages(ctx, msg); err != nil {
		// Redelivery follows; the inbox guard makes it a no-op.
		r.logger.Error("failed to commit broker offset", "error", err)
	}
}
