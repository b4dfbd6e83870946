package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/resilience"
)

// Publisher encodes operations into one message and hands it to a Sender.
type Publisher struct {
	sender Sender
	logger *slog.Logger
}

func NewPublisher(s Sender) *Publisher {
	return &Publisher{
		sender: s,
		logger: slog.Default().With("component", "publisher"),
	}
}

// Publish sends ops as a single message. An empty list sends nothing.
func (p *Publisher) Publish(ctx context.Context, ops []protocol.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	payload, err := codec.Encode(ops)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("encoding %d operations: %w", len(ops), err))
	}
	key := partitionKey(ops)
	if err := p.sender.Send(ctx, key, payload); err != nil {
		return err
	}
	p.logger.Debug("message published",
		"operations", len(ops),
		"key", string(key),
		"bytes", len(payload),
	)
	return nil
}

// partitionKey is the first entity type named by ops, so that messages for
// one entity type land on one partition.
func partitionKey(ops []protocol.Operation) []byte {
	for _, op := range ops {
		if entity := protocol.EntityOf(op); entity != "" {
			return []byte(entity)
		}
	}
	return nil
}
