package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"canlaw/pkg/requestcontext"
)

// Publisher is the emit side of the audit trail. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// StorePublisher emits events through a Store. With an outbox-backed store
// the write shares the caller's transaction semantics; with the memory store
// it is a direct append.
type StorePublisher struct {
	store  Store
	logger *slog.Logger
}

// PublisherOption configures a StorePublisher.
type PublisherOption func(*StorePublisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *StorePublisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...PublisherOption) *StorePublisher {
	p := &StorePublisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in the event identity fields from the request context and
// appends it. The event ID assigned here travels through Kafka so the
// consumer can materialize idempotently.
func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Actor == "" {
		event.Actor = requestcontext.Actor(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit append failed",
				"action", event.Action,
				"case_id", event.CaseID,
				"error", err,
			)
		}
		return err
	}
	return nil
}

// NopPublisher discards events. Used in tests and when auditing is not
// configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }

var _ Publisher = (*StorePublisher)(nil)
var _ Publisher = NopPublisher{}
