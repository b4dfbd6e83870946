// Package queue classifies work items into reader and writer queues, collapses
// the queues onto as few index handles as the items allow and dispatches them
// under the workspace lock.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/workspace"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
)

// Plan is the queue layout a dispatch cycle runs with.
type Plan uint8

const (
	PlanSplit Plan = iota + 1
	PlanReaderOnly
	PlanWriterOnly
)

func (p Plan) String() string {
	switch p {
	case PlanSplit:
		return "split"
	case PlanReaderOnly:
		return "reader_only"
	case PlanWriterOnly:
		return "writer_only"
	default:
		return "unknown"
	}
}

// Flags aggregate the requirements of every classified item.
type Flags struct {
	Batch         bool
	NeedsReader   bool
	NeedsWriter   bool
	PrefersReader bool
}

// Processor accumulates one dispatch cycle. AddWork may be called from many
// goroutines; Perform drains the processor.
type Processor struct {
	provider workspace.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	flags  Flags
	reader []work.Item
	writer []work.Item
}

type Option func(*Processor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

func NewProcessor(provider workspace.Provider, opts ...Option) *Processor {
	p := &Processor{
		provider: provider,
		logger:   slog.Default().With("component", "queue"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddWork classifies items in arrival order. An item whose requirement is not
// one of the four known values is a programming error: AddWork panics before
// queueing any of items.
func (p *Processor) AddWork(items ...work.Item) {
	for _, it := range items {
		if !knownRequirement(it.Requirement()) {
			panic(fmt.Sprintf("queue: work item %s has unknown requirement %s", it.Describe(), it.Requirement()))
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range items {
		if it.IsBatch() {
			p.flags.Batch = true
		}
		switch it.Requirement() {
		case work.RequiresReader:
			p.flags.NeedsReader = true
			p.flags.PrefersReader = true
			p.reader = append(p.reader, it)
		case work.PrefersReader:
			p.flags.PrefersReader = true
			p.reader = append(p.reader, it)
		case work.RequiresWriter:
			p.flags.NeedsWriter = true
			p.writer = append(p.writer, it)
		case work.PrefersWriter:
			p.writer = append(p.writer, it)
		}
	}
}

func knownRequirement(r work.Requirement) bool {
	switch r {
	case work.RequiresReader, work.PrefersReader, work.RequiresWriter, work.PrefersWriter:
		return true
	}
	return false
}

func (p *Processor) Flags() Flags {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

// Queues returns copies of the reader and writer queues.
func (p *Processor) Queues() (reader, writer []work.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]work.Item(nil), p.reader...), append([]work.Item(nil), p.writer...)
}

// Optimize collapses the queues according to the classification flags. Batch
// mode keeps the split as classified.
func (p *Processor) Optimize() Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.optimizeLocked()
}

func (p *Processor) optimizeLocked() Plan {
	if p.flags.Batch {
		return PlanSplit
	}
	switch {
	case p.flags.NeedsReader && p.flags.NeedsWriter:
		return PlanSplit
	case p.flags.NeedsReader:
		p.collapseOnReader()
		return PlanReaderOnly
	case p.flags.NeedsWriter:
		p.collapseOnWriter()
		return PlanWriterOnly
	case p.flags.PrefersReader:
		p.collapseOnReader()
		return PlanReaderOnly
	default:
		p.collapseOnWriter()
		return PlanWriterOnly
	}
}

func (p *Processor) collapseOnReader() {
	p.reader = append(p.reader, p.writer...)
	p.writer = nil
}

// collapseOnWriter puts reader items first so deletes run before adds.
func (p *Processor) collapseOnWriter() {
	p.writer = append(p.reader, p.writer...)
	p.reader = nil
}

// Perform optimizes the queues and applies them under the provider lock:
// reader phase first, then writer phase with post-write maintenance. Once the
// lock is held the cycle runs to completion or to the first failure; ctx only
// bounds the wait for the lock. The processor is empty afterwards.
func (p *Processor) Perform(ctx context.Context) error {
	p.mu.Lock()
	plan := p.optimizeLocked()
	flags := p.flags
	reader, writer := p.reader, p.writer
	p.flags, p.reader, p.writer = Flags{}, nil, nil
	p.mu.Unlock()

	if len(reader) == 0 && len(writer) == 0 {
		return nil
	}
	p.logger.Debug("dispatching work",
		"plan", plan.String(),
		"batch", flags.Batch,
		"reader_items", len(reader),
		"writer_items", len(writer),
	)

	start := time.Now()
	err := workspace.WithLock(ctx, p.provider, func() error {
		if err := p.applyReader(ctx, reader); err != nil {
			return err
		}
		return p.applyWriter(ctx, writer, flags.Batch)
	})

	status := "ok"
	if err != nil {
		status = "error"
		p.logger.Error("dispatch failed", "plan", plan.String(), "error", err)
	}
	p.metrics.Dispatch(plan.String(), status, time.Since(start))
	return err
}

func (p *Processor) applyReader(ctx context.Context, items []work.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	h, err := p.provider.OpenReader()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrBackendApply, err, "opening reader")
	}
	defer func() {
		if closeErr := p.provider.CloseReader(h); closeErr != nil {
			if err == nil {
				err = apperrors.Wrap(apperrors.ErrBackendApply, closeErr, "closing reader")
			} else {
				p.logger.Error("closing reader after failed phase", "error", closeErr)
			}
		}
	}()
	for i, it := range items {
		if err := it.ApplyReader(ctx, h); err != nil {
			return apperrors.Wrap(apperrors.ErrBackendApply, err,
				"applying %s on reader (item %d of %d)", it.Describe(), i+1, len(items))
		}
	}
	return nil
}

func (p *Processor) applyWriter(ctx context.Context, items []work.Item, batch bool) (err error) {
	if len(items) == 0 {
		return nil
	}
	h, err := p.provider.OpenWriter(batch)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrBackendApply, err, "opening writer")
	}
	defer func() {
		if closeErr := p.provider.CloseWriter(h); closeErr != nil {
			if err == nil {
				err = apperrors.Wrap(apperrors.ErrBackendApply, closeErr, "closing writer")
			} else {
				p.logger.Error("closing writer after failed phase", "error", closeErr)
			}
		}
	}()
	for i, it := range items {
		if err := it.ApplyWriter(ctx, h); err != nil {
			return apperrors.Wrap(apperrors.ErrBackendApply, err,
				"applying %s on writer (item %d of %d)", it.Describe(), i+1, len(items))
		}
	}
	if err := p.provider.PostWriteMaintenance(); err != nil {
		return apperrors.Wrap(apperrors.ErrBackendApply, err, "post-write maintenance")
	}
	return nil
}
