// Package backend fans work items out to the shard that owns them and runs
// one dispatch cycle per shard concurrently.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/queue"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/workspace"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
)

// ShardResult describes one shard's part of an Apply call.
type ShardResult struct {
	ShardID int
	Items   int
	Elapsed time.Duration
	Err     error
}

// Report collects the per-shard results of an Apply call, ordered by shard.
type Report struct {
	Shards []ShardResult
}

// ShardIDs lists the shards that received work.
func (r Report) ShardIDs() []int {
	ids := make([]int, 0, len(r.Shards))
	for _, s := range r.Shards {
		ids = append(ids, s.ShardID)
	}
	return ids
}

// Backend owns one workspace per shard engine.
type Backend struct {
	router     *shard.Router
	workspaces []*workspace.Workspace
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	lockFor func(shardID int) *workspace.DistributedLock
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDistributedLocks gives every shard workspace a cross-process lock.
func WithDistributedLocks(lockFor func(shardID int) *workspace.DistributedLock) Option {
	return func(o *options) { o.lockFor = lockFor }
}

func New(router *shard.Router, cfg config.IndexerConfig, opts ...Option) *Backend {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := &Backend{
		router:  router,
		metrics: o.metrics,
		logger:  slog.Default().With("component", "backend"),
	}
	for id, engine := range router.Engines() {
		wsOpts := []workspace.Option{
			workspace.WithMetrics(o.metrics),
			workspace.WithLogger(slog.Default().With("component", "workspace", "shard_id", id)),
		}
		if o.lockFor != nil {
			if l := o.lockFor(id); l != nil {
				wsOpts = append(wsOpts, workspace.WithDistributedLock(l))
			}
		}
		b.workspaces = append(b.workspaces, workspace.New(engine, cfg, wsOpts...))
	}
	o.metrics.SetActiveShards(len(b.workspaces))
	return b
}

// StartCommitLoops starts a periodic locked commit on every shard workspace.
func (b *Backend) StartCommitLoops(ctx context.Context, interval time.Duration) {
	for id, ws := range b.workspaces {
		ws.StartCommitLoop(ctx, interval)
		b.logger.Debug("commit loop started", "shard_id", id, "interval", interval)
	}
}

// Workspaces returns the shard workspaces in shard order.
func (b *Backend) Workspaces() []*workspace.Workspace {
	return append([]*workspace.Workspace(nil), b.workspaces...)
}

// Workspace returns the workspace of one shard.
func (b *Backend) Workspace(shardID int) (*workspace.Workspace, error) {
	if _, err := b.router.Route(shardID); err != nil {
		return nil, err
	}
	return b.workspaces[shardID], nil
}

// Partition groups items by owning shard, keeping arrival order within each
// shard. Items without an id go to every shard.
func (b *Backend) Partition(items []work.Item) map[int][]work.Item {
	parts := make(map[int][]work.Item)
	for _, it := range items {
		if it.ID() == nil {
			for id := range b.workspaces {
				parts[id] = append(parts[id], it)
			}
			continue
		}
		id := b.router.ShardFor(it.Entity(), it.ID())
		parts[id] = append(parts[id], it)
	}
	return parts
}

// Apply dispatches items to their shards concurrently. Each shard's cycle is
// serialized by its own workspace lock. The returned error is the first
// shard failure; the report carries every shard's outcome.
func (b *Backend) Apply(ctx context.Context, items []work.Item) (Report, error) {
	parts := b.Partition(items)
	results := make([]ShardResult, len(b.workspaces))

	var g errgroup.Group
	for id, shardItems := range parts {
		g.Go(func() error {
			start := time.Now()
			p := queue.NewProcessor(b.workspaces[id],
				queue.WithMetrics(b.metrics),
				queue.WithLogger(slog.Default().With("component", "queue", "shard_id", id)),
			)
			p.AddWork(shardItems...)
			err := p.Perform(ctx)
			results[id] = ShardResult{ShardID: id, Items: len(shardItems), Elapsed: time.Since(start), Err: err}
			b.metrics.ShardDocs(id, b.workspaces[id].Engine().DocCount())
			if err != nil {
				return fmt.Errorf("shard %d: %w", id, err)
			}
			return nil
		})
	}
	err := g.Wait()

	var report Report
	for id, r := range results {
		if _, touched := parts[id]; touched {
			report.Shards = append(report.Shards, r)
		}
	}
	b.logger.Debug("work applied",
		"items", len(items),
		"shards", len(report.Shards),
		"error", err,
	)
	return report, err
}
