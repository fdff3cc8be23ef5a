package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaNotifier publishes notifications as JSON events keyed by destination,
// so every event for one member lands on the same partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaNotifier wraps a sync producer for the given topic.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

// Send publishes the message and waits for the broker acknowledgement.
func (n *KafkaNotifier) Send(_ context.Context, message Message) error {
	if message.OccurredAt.IsZero() {
		message.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(message.Destination),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(message.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	n.logger.Debug("notification published", "kind", message.Kind, "topic", n.topic, "partition", partition, "offset", offset)
	return nil
}
