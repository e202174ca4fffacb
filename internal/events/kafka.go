package events

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events keyed by transaction id, so every event of
// one order lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.AggregateID),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Log *slog.Logger
}

func (l LogPublisher) Publish(_ context.Context, e Event) error {
	l.Log.Info("order event", "event_id", e.ID, "type", e.Type, "transaction_id", e.AggregateID, "payload", string(e.Payload))
	return nil
}
