package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/metrics"
)

var (
	_ Provider     = (*Workspace)(nil)
	_ health.Shard = (*Workspace)(nil)
)

// Stats counts handle lifecycle events and maintenance merges.
type Stats struct {
	ReaderOpens  int
	ReaderCloses int
	WriterOpens  int
	WriterCloses int
	Merges       int
}

// Workspace is the Provider for one index engine. Lock waits have no
// internal timeout; callers bound them through ctx.
type Workspace struct {
	engine  *indexer.Engine
	sem     *semaphore.Weighted
	dist    *DistributedLock
	distTok string
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	// opsSinceMerge is only touched while the lock is held.
	opsSinceMerge int
	held          atomic.Bool

	statsMu sync.Mutex
	stats   Stats
}

type Option func(*Workspace)

// WithDistributedLock makes Lock also take a cross-process lock.
func WithDistributedLock(l *DistributedLock) Option {
	return func(w *Workspace) { w.dist = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workspace) { w.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

func New(engine *indexer.Engine, cfg config.IndexerConfig, opts ...Option) *Workspace {
	w := &Workspace{
		engine: engine,
		sem:    semaphore.NewWeighted(1),
		cfg:    cfg,
		logger: slog.Default().With("component", "workspace"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workspace) Engine() *indexer.Engine {
	return w.engine
}

// Locked reports whether the lock is currently held.
func (w *Workspace) Locked() bool {
	return w.held.Load()
}

func (w *Workspace) DocCount() int     { return w.engine.DocCount() }
func (w *Workspace) SegmentCount() int { return w.engine.SegmentCount() }
func (w *Workspace) BufferedDocs() int { return w.engine.BufferedDocs() }

func (w *Workspace) Lock(ctx context.Context) error {
	w.logger.Debug("acquiring index lock")
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if w.dist != nil {
		token, err := w.dist.Acquire(ctx)
		if err != nil {
			w.sem.Release(1)
			return fmt.Errorf("acquiring distributed index lock: %w", err)
		}
		w.distTok = token
	}
	w.held.Store(true)
	w.logger.Debug("index lock acquired")
	return nil
}

// Unlock releases the lock. The distributed release is attempted even after
// the dispatch context ended so the key never outlives its holder's TTL.
func (w *Workspace) Unlock() {
	w.held.Store(false)
	if w.dist != nil && w.distTok != "" {
		if err := w.dist.Release(context.Background(), w.distTok); err != nil {
			w.logger.Error("releasing distributed index lock", "error", err)
		}
		w.distTok = ""
	}
	w.sem.Release(1)
	w.logger.Debug("index lock released")
}

func (w *Workspace) OpenReader() (work.ReaderHandle, error) {
	w.record(func(s *Stats) { s.ReaderOpens++ })
	w.metrics.HandleOpened("reader")
	w.logger.Debug("reader opened")
	return &readerHandle{engine: w.engine}, nil
}

// CloseReader commits the deletions made through h.
func (w *Workspace) CloseReader(h work.ReaderHandle) error {
	if _, ok := h.(*readerHandle); !ok {
		return apperrors.Newf(apperrors.ErrHandleMismatch, "reader handle %T not opened by this workspace", h)
	}
	w.record(func(s *Stats) { s.ReaderCloses++ })
	if err := w.engine.Commit(); err != nil {
		return fmt.Errorf("committing reader: %w", err)
	}
	return nil
}

// OpenWriter opens a writer; batch mode raises the engine's flush threshold
// until the writer is closed.
func (w *Workspace) OpenWriter(batch bool) (work.WriterHandle, error) {
	w.engine.SetBulk(batch)
	w.record(func(s *Stats) { s.WriterOpens++ })
	w.metrics.HandleOpened("writer")
	w.logger.Debug("writer opened", "batch", batch)
	return &writerHandle{readerHandle: readerHandle{engine: w.engine}, ws: w}, nil
}

func (w *Workspace) CloseWriter(h work.WriterHandle) error {
	if _, ok := h.(*writerHandle); !ok {
		return apperrors.Newf(apperrors.ErrHandleMismatch, "writer handle %T not opened by this workspace", h)
	}
	defer w.engine.SetBulk(false)
	w.record(func(s *Stats) { s.WriterCloses++ })
	if err := w.engine.Commit(); err != nil {
		return fmt.Errorf("committing writer: %w", err)
	}
	return nil
}

// PostWriteMaintenance merges segments once enough writer operations have
// accumulated or the segment count exceeds the configured bound.
func (w *Workspace) PostWriteMaintenance() error {
	segments := w.engine.SegmentCount()
	byOps := w.cfg.OptimizeOperationLimit > 0 && w.opsSinceMerge >= w.cfg.OptimizeOperationLimit
	bySegments := w.cfg.MaxSegmentsBeforeMerge > 0 && segments > w.cfg.MaxSegmentsBeforeMerge
	if !byOps && !bySegments {
		return nil
	}
	w.logger.Info("post-write maintenance merging segments",
		"ops_since_merge", w.opsSinceMerge,
		"segments", segments,
	)
	return w.merge()
}

func (w *Workspace) merge() error {
	if err := w.engine.Merge(); err != nil {
		return fmt.Errorf("merging segments: %w", err)
	}
	w.opsSinceMerge = 0
	w.record(func(s *Stats) { s.Merges++ })
	w.metrics.Merged()
	return nil
}

// CommitPending commits buffered documents while holding the index lock, so
// it never lands in the middle of a writer phase.
func (w *Workspace) CommitPending(ctx context.Context) error {
	return WithLock(ctx, w, func() error {
		if w.engine.BufferedDocs() == 0 {
			return nil
		}
		if err := w.engine.Commit(); err != nil {
			return fmt.Errorf("periodic commit: %w", err)
		}
		w.logger.Debug("periodic commit done")
		return nil
	})
}

// StartCommitLoop runs CommitPending every interval until ctx ends.
func (w *Workspace) StartCommitLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.CommitPending(ctx); err != nil && ctx.Err() == nil {
					w.logger.Error("periodic commit failed", "error", err)
				}
			}
		}
	}()
}

func (w *Workspace) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *Workspace) record(fn func(*Stats)) {
	w.statsMu.Lock()
	fn(&w.stats)
	w.statsMu.Unlock()
}

type readerHandle struct {
	engine *indexer.Engine
}

func (h *readerHandle) DeleteDocument(entity string, id []byte) (int, error) {
	return h.engine.DeleteDocument(entity, id)
}

func (h *readerHandle) PurgeEntity(entity string) (int, error) {
	return h.engine.PurgeEntity(entity)
}

// writerHandle counts applied operations for the maintenance strategy.
type writerHandle struct {
	readerHandle
	ws *Workspace
}

func (h *writerHandle) DeleteDocument(entity string, id []byte) (int, error) {
	h.ws.opsSinceMerge++
	return h.readerHandle.DeleteDocument(entity, id)
}

func (h *writerHandle) PurgeEntity(entity string) (int, error) {
	h.ws.opsSinceMerge++
	return h.readerHandle.PurgeEntity(entity)
}

func (h *writerHandle) AddDocument(doc indexer.Document) error {
	h.ws.opsSinceMerge++
	return h.engine.AddDocument(doc)
}

func (h *writerHandle) Optimize() error {
	return h.ws.merge()
}
