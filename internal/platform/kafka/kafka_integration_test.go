//go:build integration

package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/platform/kafka"
	"canlaw/pkg/testutil/containers"
)

func TestProduceConsumeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	brokers := []string{rp.Broker}
	const topic = "canlaw.audit.events.test"

	require.NoError(t, kafka.EnsureTopic(ctx, brokers, topic, 1, 1))
	// Idempotent when the topic already exists.
	require.NoError(t, kafka.EnsureTopic(ctx, brokers, topic, 1, 1))

	producer, err := kafka.NewProducer(brokers)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Produce(ctx, topic, []byte("case-1"), []byte(`{"n":1}`)))
	require.NoError(t, producer.Produce(ctx, topic, []byte("case-1"), []byte(`{"n":2}`)))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consumer, err := kafka.NewConsumer(brokers, "canlaw-test-group", []string{topic}, logger)
	require.NoError(t, err)
	defer consumer.Close()

	received := make(chan *kafka.Message, 2)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(runCtx, func(ctx context.Context, msg *kafka.Message) error {
			received <- msg
			return nil
		})
	}()

	var messages []*kafka.Message
	for len(messages) < 2 {
		select {
		case msg := <-received:
			messages = append(messages, msg)
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	cancel()
	<-done

	// Same key, so both land on one partition in produce order.
	assert.Equal(t, []byte("case-1"), messages[0].Key)
	assert.Equal(t, []byte(`{"n":1}`), messages[0].Value)
	assert.Equal(t, []byte(`{"n":2}`), messages[1].Value)
	assert.Equal(t, topic, messages[0].Topic)
}
