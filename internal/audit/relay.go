package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// relay polling defaults; overridable through RelayOption.
const (
	defaultRelayInterval  = time.Second
	defaultRelayBatchSize = 100
)

// OutboxSource is the slice of the postgres store the relay reads.
type OutboxSource interface {
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Producer is the publish side the relay drives.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes pending entries to Kafka, keyed by
// case ID so per-case event order survives partitioning. Entries are marked
// published only after the broker ack; a crash in between re-delivers, which
// the consumer's idempotent materialization absorbs.
type Relay struct {
	source   OutboxSource
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// RelayOption configures the Relay.
type RelayOption func(*Relay)

func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

func WithRelayBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batch = n }
}

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func NewRelay(source OutboxSource, producer Producer, topic string, opts ...RelayOption) *Relay {
	r := &Relay{
		source:   source,
		producer: producer,
		topic:    topic,
		interval: defaultRelayInterval,
		batch:    defaultRelayBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				if r.logger != nil {
					r.logger.ErrorContext(ctx, "outbox relay round failed", "error", err)
				}
			}
		}
	}
}

// drain publishes one batch of pending entries in insertion order. A produce
// failure stops the round mid-batch so ordering is preserved on retry.
func (r *Relay) drain(ctx context.Context) error {
	entries, err := r.source.PendingOutbox(ctx, r.batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		key := []byte(entry.CaseID.String())
		if err := r.producer.Produce(ctx, r.topic, key, entry.Payload); err != nil {
			return err
		}
		if err := r.source.MarkPublished(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
