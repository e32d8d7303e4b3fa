package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func TestKafka_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got Event
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Type != OrderRefunded || got.OrderID != 7 || !got.Amount.Equal(decimal.RequireFromString("-30")) {
			return errors.New("unexpected event body")
		}
		return nil
	})

	publisher := NewKafka(producer, "order_events", zaptest.NewLogger(t))
	err := publisher.Publish(context.Background(), Event{
		Type:       OrderRefunded,
		OrderID:    7,
		Amount:     decimal.RequireFromString("-30.00"),
		OccurredAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestKafka_PublishCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	var headers headerCarrier
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		headers = msg.Headers
		return nil
	})

	publisher := NewKafka(producer, "order_events", zaptest.NewLogger(t))
	require.NoError(t, publisher.Publish(ctx, Event{Type: OrderCreated, OrderID: 7}))
	require.NoError(t, publisher.Close())

	assert.Equal(t, "00-01000000000000000000000000000000-0200000000000000-01", headers.Get("traceparent"))
	assert.Equal(t, OrderCreated, headers.Get("event_type"))
}

func TestKafka_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafka(producer, "order_events", zaptest.NewLogger(t))
	err := publisher.Publish(context.Background(), Event{Type: OrderCreated, OrderID: 1})

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestHeaderCarrier(t *testing.T) {
	var c headerCarrier
	c.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{Type: OrderCreated}))
}
