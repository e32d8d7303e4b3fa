package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// NewSyncProducer connects a sarama producer that waits for all replicas
func NewSyncProducer(brokers []string, logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized", zap.Strings("brokers", brokers))
	return producer, nil
}

// Kafka publishes events as JSON to a single topic, keyed by order id so one
// order's events stay ordered within a partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafka creates a Kafka publisher
func NewKafka(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Kafka {
	return &Kafka{producer: producer, topic: topic, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inject trace context into Kafka message headers
	carrier := make(headerCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := &sarama.ProducerMessage{
		Topic:   k.topic,
		Key:     sarama.StringEncoder(strconv.FormatInt(event.OrderID, 10)),
		Value:   sarama.ByteEncoder(body),
		Headers: append([]sarama.RecordHeader(carrier), sarama.RecordHeader{Key: []byte("event_type"), Value: []byte(event.Type)}),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	k.logger.Debug("event published",
		zap.String("event_type", event.Type),
		zap.Int64("order_id", event.OrderID),
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close closes the underlying producer
func (k *Kafka) Close() error {
	return k.producer.Close()
}

// headerCarrier adapts Kafka record headers to propagation.TextMapCarrier
type headerCarrier []sarama.RecordHeader

func (c headerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
