package backend

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

func newTestBackend(t *testing.T, shards int) (*Backend, *shard.Router) {
	t.Helper()
	cfg := config.IndexerConfig{DataDir: t.TempDir(), NumShards: shards, SegmentMaxSize: 1 << 20, BulkSegmentFactor: 2}
	router, err := shard.NewRouter(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = router.Close() })
	return New(router, cfg), router
}

func addItem(entity string, id int) work.Item {
	return work.AddWork{Doc: indexer.Analyze(entity, []byte(fmt.Sprint(id)), protocol.NewDocument(1, protocol.StringField{
		FieldOptions: protocol.FieldOptions{Name: "title"},
		Value:        fmt.Sprintf("title %d", id),
		Index:        protocol.IndexAnalyzed,
	}))}
}

func totalDocs(r *shard.Router) int {
	n := 0
	for _, e := range r.Engines() {
		n += e.DocCount()
	}
	return n
}

func TestApplyRoutesToOwningShard(t *testing.T) {
	b, router := newTestBackend(t, 4)
	items := make([]work.Item, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, addItem("Book", i))
	}

	report, err := b.Apply(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 40, totalDocs(router))

	applied := 0
	for _, s := range report.Shards {
		applied += s.Items
		assert.NoError(t, s.Err)
	}
	assert.Equal(t, 40, applied)

	for i := 0; i < 40; i++ {
		id := []byte(fmt.Sprint(i))
		engine, err := router.Route(router.ShardFor("Book", id))
		require.NoError(t, err)
		assert.True(t, engine.Exists("Book", id))
	}
}

func TestPurgeAllBroadcasts(t *testing.T) {
	b, router := newTestBackend(t, 3)
	var items []work.Item
	for i := 0; i < 12; i++ {
		items = append(items, addItem("Book", i), addItem("Author", i))
	}
	_, err := b.Apply(context.Background(), items)
	require.NoError(t, err)

	report, err := b.Apply(context.Background(), []work.Item{work.PurgeAllWork{EntityType: "Book"}, work.OptimizeWork{}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, report.ShardIDs())
	assert.Equal(t, 12, totalDocs(router))
	for _, e := range router.Engines() {
		assert.LessOrEqual(t, e.SegmentCount(), 1)
	}
}

func TestPartitionKeepsOrderWithinShard(t *testing.T) {
	b, _ := newTestBackend(t, 2)
	del := work.DeleteWork{EntityType: "Book", DocID: []byte("7")}
	add := addItem("Book", 7)
	parts := b.Partition([]work.Item{del, add, work.OptimizeWork{}})

	owner := b.router.ShardFor("Book", []byte("7"))
	assert.Equal(t, []work.Item{del, add, work.OptimizeWork{}}, parts[owner])
	assert.Equal(t, []work.Item{work.OptimizeWork{}}, parts[1-owner])
}

func TestWorkspaceLookup(t *testing.T) {
	b, _ := newTestBackend(t, 2)
	ws, err := b.Workspace(1)
	require.NoError(t, err)
	assert.NotNil(t, ws)
	_, err = b.Workspace(5)
	assert.ErrorIs(t, err, apperrors.ErrUnknownShard)
}

type recordingApplier struct {
	mu      sync.Mutex
	batches [][]work.Item
}

func (r *recordingApplier) Apply(_ context.Context, items []work.Item) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
	return Report{Shards: []ShardResult{{Items: len(items)}}}, nil
}

func TestPendingSetFlush(t *testing.T) {
	rec := &recordingApplier{}
	set := NewPendingSet(rec)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				set.Add(work.DeleteWork{EntityType: "Book", DocID: []byte{byte(g), byte(i)}})
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 100, set.Len())

	report, err := set.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, report.Shards[0].Items)
	assert.Zero(t, set.Len())

	_, err = set.Flush(context.Background())
	require.NoError(t, err)
	assert.Len(t, rec.batches, 1, "empty flush must not dispatch")
}
