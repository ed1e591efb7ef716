package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"canlaw/internal/platform/kafka"
)

// Materializer is the slice of the postgres store the consumer writes.
type Materializer interface {
	Materialize(ctx context.Context, event Event) error
}

// ConsumerHandler decodes relayed events and materializes them into the
// query table. Safe under redelivery: Materialize is keyed on the event ID.
type ConsumerHandler struct {
	store  Materializer
	logger *slog.Logger
}

func NewConsumerHandler(store Materializer, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{store: store, logger: logger}
}

// Handle processes one Kafka message. Undecodable payloads are logged and
// dropped rather than wedging the partition; storage failures propagate so
// the consumer stops without committing.
func (h *ConsumerHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "dropping undecodable audit message",
				"topic", msg.Topic,
				"key", string(msg.Key),
				"error", err,
			)
		}
		return nil
	}
	if err := h.store.Materialize(ctx, event); err != nil {
		return fmt.Errorf("materialize audit event %s: %w", event.ID, err)
	}
	return nil
}
