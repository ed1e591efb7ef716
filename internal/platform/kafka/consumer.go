package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record, decoupled from kgo so handlers stay
// transport-agnostic.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes one message. Returning an error stops the consumer
// without committing the current fetch; redelivery follows on restart, so
// handlers must be idempotent.
type Handler func(ctx context.Context, msg *Message) error

// Consumer is a group consumer with manual commits after each handled fetch.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewConsumer(brokers []string, group string, topics []string, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until the context is cancelled, handing each record to handle
// and committing offsets once the whole fetch succeeded.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if c.logger != nil && !errors.Is(err, context.Canceled) {
				c.logger.ErrorContext(ctx, "kafka fetch error",
					"topic", topic,
					"partition", partition,
					"error", err,
				)
			}
		})

		var handleErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = handle(ctx, &Message{
				Topic: record.Topic,
				Key:   record.Key,
				Value: record.Value,
			})
		})
		if handleErr != nil {
			return fmt.Errorf("handle record: %w", handleErr)
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			return fmt.Errorf("commit offsets: %w", err)
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
