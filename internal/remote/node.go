package remote

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/backend"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/rpc"
)

// Node is the index-node end of a transport: it decodes each message, turns
// it into work and applies it through the backend.
type Node struct {
	deserializer *codec.Deserializer
	applier      backend.Applier
	journal      *journal.Journal
	metrics      *metrics.Metrics
	opts         work.Options
	logger       *slog.Logger
}

type NodeOption func(*Node)

// WithBatch marks every item the node builds as part of a batch, which
// routes it straight to the writer.
func WithBatch(batch bool) NodeOption {
	return func(n *Node) { n.opts.Batch = batch }
}

func NewNode(applier backend.Applier, j *journal.Journal, m *metrics.Metrics, opts ...NodeOption) *Node {
	n := &Node{
		applier: applier,
		journal: j,
		metrics: m,
		logger:  slog.Default().With("component", "index-node"),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.deserializer = codec.NewDeserializer(codec.WithNewerMinorHook(func(protocol.Version) {
		m.NewerMinor()
	}))
	return n
}

// Handle decodes and applies one message. A message that fails to decode is
// rejected whole and nothing is applied.
func (n *Node) Handle(ctx context.Context, payload []byte) error {
	msg, err := n.deserializer.Decode(payload)
	if err != nil {
		n.metrics.MessageDecoded("error")
		return err
	}
	n.metrics.MessageDecoded("ok")

	items, err := work.Build(msg, n.opts)
	if err != nil {
		return err
	}
	for _, op := range msg.Operations {
		n.metrics.Operation(op.Kind().String())
	}

	report, applyErr := n.applier.Apply(ctx, items)
	entry := journal.Entry{
		Version:    msg.Version.String(),
		Operations: len(msg.Operations),
		Shards:     report.ShardIDs(),
		Status:     journal.StatusApplied,
	}
	if applyErr != nil {
		entry.Status = journal.StatusFailed
		entry.Err = applyErr.Error()
	}
	n.journal.Record(ctx, entry)

	logger.FromContext(ctx).Info("message applied",
		"version", entry.Version,
		"operations", entry.Operations,
		"shards", entry.Shards,
		"status", entry.Status,
	)
	return applyErr
}

// rejected reports whether err means the message itself is unusable, so
// redelivering it can never succeed.
func rejected(err error) bool {
	return apperrors.IsFatalDecode(err) ||
		errors.Is(err, apperrors.ErrDocumentAlreadyOpen) ||
		errors.Is(err, apperrors.ErrNoOpenDocument)
}

// KafkaHandler skips messages that can never apply and returns backend
// errors so their offsets stay uncommitted.
func (n *Node) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ctx = logger.WithAttrs(ctx, "transport", "kafka", "key", string(key))
		err := n.Handle(ctx, value)
		if err != nil && rejected(err) {
			logger.FromContext(ctx).Error("dropping undecodable message",
				"value_size", len(value),
				"error", err,
			)
			return nil
		}
		return err
	}
}

func (n *Node) RPCHandler() rpc.HandlerFunc {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		ctx = logger.WithAttrs(ctx, "transport", "rpc")
		return nil, n.Handle(ctx, payload)
	}
}
