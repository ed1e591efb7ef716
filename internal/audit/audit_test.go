package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/platform/kafka"
	"canlaw/pkg/domain"
	"canlaw/pkg/requestcontext"
)

func TestPublisherFillsIdentityFields(t *testing.T) {
	store := NewMemoryStore()
	publisher := NewPublisher(store)

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-123")
	ctx = requestcontext.WithActor(ctx, "svc-interview")

	caseID := domain.NewCaseID()
	err := publisher.Emit(ctx, Event{Action: ActionCaseCreated, CaseID: caseID})
	require.NoError(t, err)

	events, err := store.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-123", events[0].RequestID)
	assert.Equal(t, "svc-interview", events[0].Actor)
}

func TestPublisherKeepsExplicitFields(t *testing.T) {
	store := NewMemoryStore()
	publisher := NewPublisher(store)

	caseID := domain.NewCaseID()
	eventID := uuid.New()
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := publisher.Emit(context.Background(), Event{
		ID:        eventID,
		Action:    ActionAnswerRecorded,
		CaseID:    caseID,
		Timestamp: stamp,
		Actor:     "seed-loader",
	})
	require.NoError(t, err)

	events, err := store.ListByCase(context.Background(), caseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, stamp, events[0].Timestamp)
	assert.Equal(t, "seed-loader", events[0].Actor)
}

func TestMemoryStoreFiltersByCase(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	caseA := domain.NewCaseID()
	caseB := domain.NewCaseID()
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Action: ActionCaseCreated, CaseID: caseA}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Action: ActionCaseCreated, CaseID: caseB}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Action: ActionCaseEvaluated, CaseID: caseA}))

	events, err := store.ListByCase(ctx, caseA)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionCaseCreated, events[0].Action)
	assert.Equal(t, ActionCaseEvaluated, events[1].Action)
}

type fakeOutbox struct {
	entries   []OutboxEntry
	published []uuid.UUID
}

func (f *fakeOutbox) PendingOutbox(_ context.Context, limit int) ([]OutboxEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	pending := f.entries[:limit]
	f.entries = f.entries[limit:]
	return pending, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

type fakeProducer struct {
	produced []kafka.Message
	failAt   int // produce at this index fails; -1 never fails
}

func (f *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	if f.failAt == len(f.produced) {
		return errors.New("broker unavailable")
	}
	f.produced = append(f.produced, kafka.Message{Topic: topic, Key: key, Value: value})
	return nil
}

func TestRelayDrainPublishesAndMarks(t *testing.T) {
	caseID := domain.NewCaseID()
	first := OutboxEntry{ID: uuid.New(), CaseID: uuid.UUID(caseID), Action: string(ActionCaseCreated), Payload: []byte(`{"a":1}`)}
	second := OutboxEntry{ID: uuid.New(), CaseID: uuid.UUID(caseID), Action: string(ActionCaseEvaluated), Payload: []byte(`{"a":2}`)}
	source := &fakeOutbox{entries: []OutboxEntry{first, second}}
	producer := &fakeProducer{failAt: -1}

	relay := NewRelay(source, producer, "canlaw.audit.events")
	require.NoError(t, relay.drain(context.Background()))

	require.Len(t, producer.produced, 2)
	assert.Equal(t, "canlaw.audit.events", producer.produced[0].Topic)
	assert.Equal(t, caseID.String(), string(producer.produced[0].Key))
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, source.published)
}

func TestRelayDrainStopsOnProduceFailure(t *testing.T) {
	first := OutboxEntry{ID: uuid.New(), Payload: []byte(`{}`)}
	second := OutboxEntry{ID: uuid.New(), Payload: []byte(`{}`)}
	source := &fakeOutbox{entries: []OutboxEntry{first, second}}
	producer := &fakeProducer{failAt: 1}

	relay := NewRelay(source, producer, "canlaw.audit.events")
	require.Error(t, relay.drain(context.Background()))

	// The first entry made it through and is marked; the second is neither
	// produced nor marked, so the next round retries it in order.
	assert.Equal(t, []uuid.UUID{first.ID}, source.published)
	assert.Len(t, producer.produced, 1)
}

type fakeMaterializer struct {
	events []Event
	err    error
}

func (f *fakeMaterializer) Materialize(_ context.Context, event Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestConsumerHandlerMaterializes(t *testing.T) {
	event := Event{
		ID:        uuid.New(),
		Action:    ActionRecalculationCompleted,
		CaseID:    domain.NewCaseID(),
		Timestamp: time.Now().UTC(),
		Detail:    map[string]string{"changed_slot": "annual_salary"},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	store := &fakeMaterializer{}
	handler := NewConsumerHandler(store, nil)
	require.NoError(t, handler.Handle(context.Background(), &kafka.Message{Value: payload}))

	require.Len(t, store.events, 1)
	assert.Equal(t, event.ID, store.events[0].ID)
	assert.Equal(t, "annual_salary", store.events[0].Detail["changed_slot"])
}

func TestConsumerHandlerDropsUndecodable(t *testing.T) {
	store := &fakeMaterializer{}
	handler := NewConsumerHandler(store, nil)
	require.NoError(t, handler.Handle(context.Background(), &kafka.Message{Value: []byte("not json")}))
	assert.Empty(t, store.events)
}

func TestConsumerHandlerPropagatesStoreFailure(t *testing.T) {
	payload, err := json.Marshal(Event{ID: uuid.New(), Action: ActionCaseCreated, CaseID: domain.NewCaseID()})
	require.NoError(t, err)

	store := &fakeMaterializer{err: errors.New("db down")}
	handler := NewConsumerHandler(store, nil)
	require.Error(t, handler.Handle(context.Background(), &kafka.Message{Value: payload}))
}
