package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"shop/internal/domain/event"
	"shop/internal/domain/outbox"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_outbox_messages_published_total",
		Help: "The total number of outbox messages published to the broker",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_outbox_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
	pendingReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_outbox_messages_released_total",
		Help: "Claimed messages released back to pending after a publish failure",
	})
)

// Publisher is the broker side of the dispatcher, satisfied by the
// kafka producer.
type Publisher interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	MaxBackoff   time.Duration
	Logger       *slog.Logger
}

// OutboxPoller relays pending outbox rows to the broker. A row is
// marked sent only after a positive broker acknowledgment; rows that
// fail to publish are released back to pending and retried with
// exponential backoff.
type OutboxPoller struct {
	repo    outbox.Repository
	pub     Publisher
	opts    Options
	logger  *slog.Logger
	backoff time.Duration
}

func NewOutboxPoller(repo outbox.Repository, pub Publisher, opts Options) *OutboxPoller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{repo: repo, pub: pub, opts: opts, logger: logger}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.logger.Info("outbox dispatcher started",
		"poll_interval", p.opts.PollInterval, "batch_size", p.opts.BatchSize)

	// Rows claimed by a previous run that died before mark-sent would
	// otherwise sit in publishing forever.
	released, err := p.repo.ReleaseStuck(ctx)
	if err != nil {
		p.logger.Error("failed to release stuck outbox messages", "error", err)
	} else if released > 0 {
		p.logger.Warn("released outbox messages stuck in publishing", "count", released)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			failed, err := p.processBatch(ctx)
			if err != nil {
				p.logger.Error("failed to process outbox batch", "error", err)
			}
			if failed {
				// Broker trouble; back off before the next round so a
				// dead broker is not hammered every tick.
				if p.backoff == 0 {
					p.backoff = p.opts.PollInterval
				} else if p.backoff *= 2; p.backoff > p.opts.MaxBackoff {
					p.backoff = p.opts.MaxBackoff
				}
				p.logger.Warn("publish failures in round, backing off", "backoff", p.backoff)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(p.backoff):
				}
			} else {
				p.backoff = 0
			}
		}
	}
}

// processBatch claims pending rows (oldest first, preserving per-
// destination order) and publishes them one by one. It reports whether
// any publish failed.
func (p *OutboxPoller) processBatch(ctx context.Context) (bool, error) {
	messages, err := p.repo.ClaimBatch(ctx, p.opts.BatchSize)
	if err != nil {
		return false, err
	}
	if len(messages) == 0 {
		return false, nil
	}

	var sentIDs []string
	var failedIDs []string
	failedDestinations := make(map[string]bool)

	for _, m := range messages {
		// Once a destination fails, hold back its younger messages too,
		// otherwise they would overtake the failed one.
		if failedDestinations[m.Destination] {
			failedIDs = append(failedIDs, m.ID)
			continue
		}

		env := event.Message{
			ID:            m.ID,
			Type:          m.Type,
			CorrelationID: m.CorrelationID,
			CausationID:   m.CausationID,
			Producer:      m.Producer,
			OccurredAt:    time.Now().UTC(),
			Payload:       m.Payload,
		}

		value, err := json.Marshal(env)
		if err != nil {
			p.logger.Error("failed to marshal outbox message", "message_id", m.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, m.ID)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.pub.SendMessage(sendCtx, m.Destination, env.Key(), value)
		cancel()

		if err != nil {
			p.logger.Error("failed to publish outbox message",
				"message_id", m.ID, "destination", m.Destination, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, m.ID)
			failedDestinations[m.Destination] = true
			continue
		}

		messagesPublished.Inc()
		sentIDs = append(sentIDs, m.ID)
	}

	if len(sentIDs) > 0 {
		if err := p.repo.MarkSent(ctx, sentIDs); err != nil {
			// The rows stay claimed; the migrate tool's -reset-stuck
			// releases them if the process dies before this retries.
			return len(failedIDs) > 0, err
		}
		p.logger.Info("published outbox messages", "count", len(sentIDs))
	}

	if len(failedIDs) > 0 {
		pendingReleased.Add(float64(len(failedIDs)))
		if err := p.repo.Release(ctx, failedIDs); err != nil {
			p.logger.Error("failed to release outbox messages", "error", err)
		}
	}

	return len(failedIDs) > 0, nil
}
