// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Payloads travel as opaque bytes; decoding belongs to
// the MessageHandler.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/resilience"
)

// MessageHandler is a callback invoked for each Kafka message. A plain error
// makes the consumer retry the same message; an error marked with
// resilience.Permanent stops the consumer. The offset is committed only
// after the handler returns nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// reader is the part of *kafka.Reader the consume loop uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler, one message at a time in partition order.
type Consumer struct {
	reader  reader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
	backoff time.Duration
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, cfg, topic, handler)
}

func newConsumer(r reader, cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		retry:   resilience.RetryConfig{MaxAttempts: cfg.MaxRetries, InitialDelay: backoff, MaxDelay: 30 * backoff},
		backoff: backoff,
	}
}

// Start enters the consume loop until ctx is cancelled or a message fails
// permanently. A failing message is retried in place; the loop never fetches
// past it.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping with message unapplied",
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler until it succeeds, fails permanently or ctx ends.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	for {
		err := resilience.Retry(ctx, "kafka-handle", c.retry, func(ctx context.Context) error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err == nil {
			return nil
		}
		if resilience.IsPermanent(err) {
			return fmt.Errorf("message at partition %d offset %d cannot be applied: %w", msg.Partition, msg.Offset, err)
		}
		c.logger.Error("message still failing, holding partition",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
