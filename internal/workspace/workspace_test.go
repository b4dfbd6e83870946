package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

func newTestWorkspace(t *testing.T, tweak func(*config.IndexerConfig), opts ...Option) *Workspace {
	t.Helper()
	cfg := config.IndexerConfig{
		DataDir:           t.TempDir(),
		NumShards:         1,
		SegmentMaxSize:    1 << 20,
		BulkSegmentFactor: 4,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	engine, err := indexer.NewEngine(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return New(engine, cfg, opts...)
}

func doc(id string) indexer.Document {
	return indexer.Analyze("Book", []byte(id), protocol.NewDocument(1, protocol.StringField{
		FieldOptions: protocol.FieldOptions{Name: "title"},
		Value:        "Dune",
		Store:        protocol.StoreYes,
		Index:        protocol.IndexAnalyzed,
	}))
}

func TestLockIsExclusive(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	ctx := context.Background()
	require.NoError(t, ws.Lock(ctx))

	acquired := make(chan struct{})
	go func() {
		if !assert.NoError(t, ws.Lock(ctx)) {
			return
		}
		close(acquired)
		ws.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, ws.Locked())
	ws.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after Unlock")
	}
}

func TestLockHonoursContext(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	require.NoError(t, ws.Lock(context.Background()))
	defer ws.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ws.Lock(ctx), context.DeadlineExceeded)
}

func TestWithLockReleasesOnErrorAndPanic(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	assert.ErrorIs(t, WithLock(ctx, ws, func() error { return boom }), boom)
	assert.Panics(t, func() {
		_ = WithLock(ctx, ws, func() error { panic("apply blew up") })
	})
	assert.False(t, ws.Locked())
	assert.True(t, ws.sem.TryAcquire(1), "lock must be free after error and panic")
	ws.sem.Release(1)
}

func TestHandlesApplyAndCount(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	w, err := ws.OpenWriter(true)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(doc("1")))
	require.NoError(t, w.AddDocument(doc("2")))
	require.NoError(t, ws.CloseWriter(w))

	r, err := ws.OpenReader()
	require.NoError(t, err)
	n, err := r.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, ws.CloseReader(r))

	assert.Equal(t, 1, ws.Engine().DocCount())
	assert.Equal(t, Stats{ReaderOpens: 1, ReaderCloses: 1, WriterOpens: 1, WriterCloses: 1}, ws.Stats())
}

func TestCommitPendingWaitsForWriterPhase(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	require.NoError(t, ws.Lock(context.Background()))
	w, err := ws.OpenWriter(true)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(doc("1")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws.StartCommitLoop(ctx, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, ws.Engine().SegmentCount(), "commit loop flushed a half-applied writer phase")
	assert.Equal(t, 1, ws.Engine().BufferedDocs())

	require.NoError(t, w.AddDocument(doc("2")))
	ws.Unlock()
	assert.Eventually(t, func() bool {
		return ws.Engine().SegmentCount() == 1 && ws.Engine().BufferedDocs() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, ws.Engine().DocCount())
}

func TestCommitPendingHonoursContext(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	require.NoError(t, ws.Lock(context.Background()))
	defer ws.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ws.CommitPending(ctx), context.DeadlineExceeded)
}

type foreignHandle struct{}

func (foreignHandle) DeleteDocument(string, []byte) (int, error) { return 0, nil }
func (foreignHandle) PurgeEntity(string) (int, error)            { return 0, nil }
func (foreignHandle) AddDocument(indexer.Document) error         { return nil }
func (foreignHandle) Optimize() error                            { return nil }

func TestCloseRejectsForeignHandles(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	assert.ErrorIs(t, ws.CloseReader(foreignHandle{}), apperrors.ErrHandleMismatch)
	assert.ErrorIs(t, ws.CloseWriter(foreignHandle{}), apperrors.ErrHandleMismatch)
}

func TestMaintenanceMergesAfterOperationLimit(t *testing.T) {
	ws := newTestWorkspace(t, func(c *config.IndexerConfig) { c.OptimizeOperationLimit = 3 })

	for i, id := range []string{"1", "2", "3"} {
		w, err := ws.OpenWriter(false)
		require.NoError(t, err)
		require.NoError(t, w.AddDocument(doc(id)))
		require.NoError(t, ws.CloseWriter(w))
		require.NoError(t, ws.PostWriteMaintenance())
		if i < 2 {
			assert.Zero(t, ws.Stats().Merges)
		}
	}
	assert.Equal(t, 1, ws.Stats().Merges)
	assert.Equal(t, 1, ws.Engine().SegmentCount())
	assert.Zero(t, ws.opsSinceMerge)
}

func TestMaintenanceMergesWhenTooManySegments(t *testing.T) {
	ws := newTestWorkspace(t, func(c *config.IndexerConfig) { c.MaxSegmentsBeforeMerge = 2 })
	for _, id := range []string{"1", "2", "3"} {
		w, err := ws.OpenWriter(false)
		require.NoError(t, err)
		require.NoError(t, w.AddDocument(doc(id)))
		require.NoError(t, ws.CloseWriter(w))
	}
	require.Equal(t, 3, ws.Engine().SegmentCount())
	require.NoError(t, ws.PostWriteMaintenance())
	assert.Equal(t, 1, ws.Engine().SegmentCount())
	assert.Equal(t, 3, ws.Engine().DocCount())
}

func TestOptimizeThroughWriter(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	w, err := ws.OpenWriter(false)
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(doc("1")))
	require.NoError(t, w.Optimize())
	require.NoError(t, ws.CloseWriter(w))
	assert.Equal(t, 1, ws.Stats().Merges)
	assert.Equal(t, 1, ws.Engine().SegmentCount())
}

type memLockStore struct {
	mu      sync.Mutex
	holders map[string]string
	tries   int
}

func newMemLockStore() *memLockStore {
	return &memLockStore{holders: make(map[string]string)}
}

func (s *memLockStore) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if _, held := s.holders[key]; held {
		return false, nil
	}
	s.holders[key] = token
	return true, nil
}

func (s *memLockStore) Unlock(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders[key] != token {
		return false, nil
	}
	delete(s.holders, key)
	return true, nil
}

func TestDistributedLockWaitsForHolder(t *testing.T) {
	store := newMemLockStore()
	a := NewDistributedLock(store, "shard-0", time.Second, time.Millisecond)
	b := NewDistributedLock(store, "shard-0", time.Second, time.Millisecond)
	ctx := context.Background()

	tokA, err := a.Acquire(ctx)
	require.NoError(t, err)

	done := make(chan string)
	go func() {
		tok, err := b.Acquire(ctx)
		assert.NoError(t, err)
		done <- tok
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Release(ctx, tokA))

	select {
	case tokB := <-done:
		assert.NotEqual(t, tokA, tokB)
		require.NoError(t, b.Release(ctx, tokB))
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	assert.Greater(t, store.tries, 2)
}

func TestDistributedLockReleaseWithStaleToken(t *testing.T) {
	store := newMemLockStore()
	l := NewDistributedLock(store, "shard-0", time.Second, time.Millisecond)
	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, l.Release(context.Background(), "stale"))
	assert.Len(t, store.holders, 1, "stale token must not release the lock")
}

func TestDistributedLockCancel(t *testing.T) {
	store := newMemLockStore()
	holder := NewDistributedLock(store, "k", time.Second, time.Millisecond)
	_, err := holder.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = NewDistributedLock(store, "k", time.Second, time.Millisecond).Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkspaceTakesDistributedLock(t *testing.T) {
	store := newMemLockStore()
	ws := newTestWorkspace(t, nil, WithDistributedLock(NewDistributedLock(store, "shard-0", time.Second, time.Millisecond)))

	require.NoError(t, ws.Lock(context.Background()))
	assert.Len(t, store.holders, 1)
	ws.Unlock()
	assert.Empty(t, store.holders)
}
