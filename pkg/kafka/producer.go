package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
)

// Message is one raw record. Key is used for partition hashing.
type Message struct {
	Key   []byte
	Value []byte
}

// Producer publishes raw byte messages to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes a single message synchronously.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value}); err != nil {
		p.logger.Error("failed to publish message",
			"key", string(msg.Key),
			"error", err,
		)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published",
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	return nil
}

// PublishBatch writes multiple messages in a single write call.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) error {
	messages := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, kafka.Message{Key: m.Key, Value: m.Value})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch",
			"count", len(messages),
			"error", err,
		)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
