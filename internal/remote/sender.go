// Package remote moves encoded index messages between producers and index
// nodes over Kafka or the binary RPC transport.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/rpc"
)

// MethodApply is the RPC method an index node serves encoded messages on.
const MethodApply = "Index.Apply"

// Sender delivers one encoded message. key groups messages that must stay
// ordered relative to each other.
type Sender interface {
	Send(ctx context.Context, key, payload []byte) error
	Close() error
}

// Producer is the publishing side of pkg/kafka.
type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Caller is the calling side of pkg/rpc.
type Caller interface {
	Call(ctx context.Context, method string, payload []byte) ([]byte, error)
	Close() error
}

func retryConfig(maxAttempts int, backoff time.Duration) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: maxAttempts, InitialDelay: backoff}
}

// guarded runs fn through the breaker inside a retry loop. An open breaker
// ends the loop at once.
func guarded(ctx context.Context, name string, retry resilience.RetryConfig, breaker *resilience.Breaker, fn func(ctx context.Context) error) error {
	return resilience.Retry(ctx, name, retry, func(ctx context.Context) error {
		err := breaker.Execute(ctx, fn)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(err)
		}
		return err
	})
}

func sendStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type KafkaSender struct {
	producer Producer
	retry    resilience.RetryConfig
	breaker  *resilience.Breaker
	metrics  *metrics.Metrics
}

func NewKafkaSender(p Producer, cfg config.KafkaConfig, m *metrics.Metrics) *KafkaSender {
	return &KafkaSender{
		producer: p,
		retry:    retryConfig(cfg.MaxRetries, cfg.RetryBackoff),
		breaker:  resilience.NewBreaker("kafka-send", resilience.BreakerConfig{}),
		metrics:  m,
	}
}

func (s *KafkaSender) Send(ctx context.Context, key, payload []byte) error {
	err := guarded(ctx, "kafka-send", s.retry, s.breaker, func(ctx context.Context) error {
		return s.producer.Publish(ctx, kafka.Message{Key: key, Value: payload})
	})
	s.metrics.TransportSend("kafka", sendStatus(err))
	if err != nil {
		return fmt.Errorf("sending %d bytes over kafka: %w", len(payload), err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.producer.Close()
}

type RPCSender struct {
	caller  Caller
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

func NewRPCSender(c Caller, maxAttempts int, backoff time.Duration, m *metrics.Metrics) *RPCSender {
	return &RPCSender{
		caller:  c,
		retry:   retryConfig(maxAttempts, backoff),
		breaker: resilience.NewBreaker("rpc-send", resilience.BreakerConfig{}),
		metrics: m,
	}
}

// Send calls MethodApply. A rejection by the node is returned without retry.
func (s *RPCSender) Send(ctx context.Context, _, payload []byte) error {
	err := guarded(ctx, "rpc-send", s.retry, s.breaker, func(ctx context.Context) error {
		_, err := s.caller.Call(ctx, MethodApply, payload)
		var remote *rpc.RemoteError
		if errors.As(err, &remote) {
			return resilience.Permanent(err)
		}
		return err
	})
	s.metrics.TransportSend("rpc", sendStatus(err))
	if err != nil {
		return fmt.Errorf("sending %d bytes over rpc: %w", len(payload), err)
	}
	return nil
}

func (s *RPCSender) Close() error {
	return s.caller.Close()
}
