package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
)

func testConfig(t *testing.T) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		DataDir:           t.TempDir(),
		NumShards:         1,
		SegmentMaxSize:    1 << 20,
		BulkSegmentFactor: 4,
	}
}

func newTestEngine(t *testing.T, cfg config.IndexerConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func book(id, title string) Document {
	return Analyze("Book", []byte(id), protocol.NewDocument(1,
		protocol.StringField{
			FieldOptions: protocol.FieldOptions{Name: "title", Boost: 1},
			Value:        title,
			Store:        protocol.StoreYes,
			Index:        protocol.IndexAnalyzed,
		},
		protocol.StringField{
			FieldOptions: protocol.FieldOptions{Name: "isbn", Boost: 1},
			Value:        "isbn-" + id,
			Store:        protocol.StoreNo,
			Index:        protocol.IndexNotAnalyzed,
		},
	))
}

func searchKeys(t *testing.T, e *Engine, field, term string) []string {
	t.Helper()
	postings, err := e.Search(field, term)
	require.NoError(t, err)
	keys := make([]string, 0, len(postings))
	for _, p := range postings {
		keys = append(keys, p.DocKey)
	}
	return keys
}

func TestEngineAddSearchAcrossFlush(t *testing.T) {
	e := newTestEngine(t, testConfig(t))

	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.Flush())
	require.NoError(t, e.AddDocument(book("2", "Dune Messiah")))

	assert.Len(t, searchKeys(t, e, "title", "dune"), 2)
	assert.Len(t, searchKeys(t, e, "isbn", "isbn-2"), 1)
	assert.Empty(t, searchKeys(t, e, "isbn", "isbn"))
	assert.Equal(t, 2, e.DocCount())
	assert.Equal(t, 1, e.SegmentCount())
}

func TestEngineDeleteHidesSegmentCopy(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.Commit())

	removed, err := e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, e.Exists("Book", []byte("1")))
	assert.Empty(t, searchKeys(t, e, "title", "dune"))

	removed, err = e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEngineAddAfterDeleteIsVisible(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.Commit())
	_, err := e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	require.NoError(t, e.AddDocument(book("1", "Children of Dune")))
	require.NoError(t, e.Commit())

	assert.True(t, e.Exists("Book", []byte("1")))
	assert.Len(t, searchKeys(t, e, "title", "children"), 1)
	assert.Equal(t, 1, e.DocCount())

	doc, ok := e.Get("Book", []byte("1"))
	require.True(t, ok)
	require.Len(t, doc.Stored, 1)
	assert.Equal(t, "Children of Dune", string(doc.Stored[0].Value))
}

func TestEngineTombstonesSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.AddDocument(book("2", "Emma")))
	require.NoError(t, e.Commit())
	_, err = e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened := newTestEngine(t, cfg)
	assert.False(t, reopened.Exists("Book", []byte("1")))
	assert.True(t, reopened.Exists("Book", []byte("2")))
	assert.Equal(t, 1, reopened.DocCount())
}

func TestEngineSkippedSegmentKeepsTombstonesAligned(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, e.AddDocument(book("9", "Emma")))
	require.NoError(t, e.Commit())
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.AddDocument(book("2", "Ulysses")))
	require.NoError(t, e.Commit())
	_, err = e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)
	_, err = e.DeleteDocument("Book", []byte("2"))
	require.NoError(t, err)
	require.NoError(t, e.AddDocument(book("1", "Children of Dune")))
	require.NoError(t, e.Commit())
	require.NoError(t, e.Close())

	oldest := filepath.Join(cfg.DataDir, segment.FileName(1))
	data, err := os.ReadFile(oldest)
	require.NoError(t, err)
	data[segment.HeaderSize+3] ^= 0xff
	require.NoError(t, os.WriteFile(oldest, data, 0644))

	reopened := newTestEngine(t, cfg)
	assert.Equal(t, 2, reopened.SegmentCount())
	assert.True(t, reopened.Exists("Book", []byte("1")))
	assert.False(t, reopened.Exists("Book", []byte("2")))
	assert.False(t, reopened.Exists("Book", []byte("9")))
	assert.Equal(t, []string{"Book/31"}, searchKeys(t, reopened, "title", "dune"))

	require.NoError(t, reopened.AddDocument(book("3", "Dune Messiah")))
	require.NoError(t, reopened.Commit())
	_, err = os.Stat(filepath.Join(cfg.DataDir, segment.FileName(4)))
	assert.NoError(t, err, "new segments must not reuse the skipped sequence")
}

func TestEnginePurgeEntity(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.Commit())
	require.NoError(t, e.AddDocument(book("2", "Emma")))
	require.NoError(t, e.AddDocument(Analyze("Author", []byte("9"), protocol.NewDocument(1))))

	removed, err := e.PurgeEntity("Book")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, e.DocCount())
	assert.True(t, e.Exists("Author", []byte("9")))
}

func TestEngineMergeCollapsesSegments(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, e.AddDocument(book(id, "Dune part "+id)))
		require.NoError(t, e.Commit())
	}
	_, err := e.DeleteDocument("Book", []byte("2"))
	require.NoError(t, err)
	require.Equal(t, 3, e.SegmentCount())

	require.NoError(t, e.Merge())
	assert.Equal(t, 1, e.SegmentCount())
	assert.Equal(t, 2, e.DocCount())
	assert.Len(t, searchKeys(t, e, "title", "dune"), 2)
	assert.False(t, e.Exists("Book", []byte("2")))
}

func TestEngineMergeOfEmptyIndex(t *testing.T) {
	e := newTestEngine(t, testConfig(t))
	require.NoError(t, e.AddDocument(book("1", "Dune")))
	require.NoError(t, e.Commit())
	_, err := e.DeleteDocument("Book", []byte("1"))
	require.NoError(t, err)

	require.NoError(t, e.Merge())
	assert.Zero(t, e.SegmentCount())
	assert.Zero(t, e.DocCount())
}

func TestEngineBulkRaisesFlushThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.SegmentMaxSize = 1
	e := newTestEngine(t, cfg)

	require.NoError(t, e.AddDocument(book("1", "Dune")))
	assert.Equal(t, 1, e.SegmentCount(), "tiny threshold flushes every add")

	bulk := newTestEngine(t, config.IndexerConfig{DataDir: t.TempDir(), SegmentMaxSize: 256, BulkSegmentFactor: 1000})
	bulk.SetBulk(true)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, bulk.AddDocument(book(id, "Dune")))
	}
	assert.Zero(t, bulk.SegmentCount())
}

func TestAnalyzeFieldKinds(t *testing.T) {
	doc := Analyze("Book", []byte{7}, protocol.NewDocument(2,
		protocol.NumericIntField{
			NumericOptions: protocol.NumericOptions{FieldOptions: protocol.FieldOptions{Name: "year"}, Store: protocol.StoreYes, Indexed: true},
			Value:          1965,
		},
		protocol.BinaryField{FieldOptions: protocol.FieldOptions{Name: "cover"}, Value: []byte("abcdef"), Offset: 1, Length: 3},
		protocol.CustomField{SerializedInstance: []byte{1, 2}},
		protocol.StringField{FieldOptions: protocol.FieldOptions{Name: "notes"}, Value: "secret", Index: protocol.IndexNo},
	))

	require.Len(t, doc.Fields, 4)
	assert.Equal(t, "1965", doc.Fields[0].Tokens[0].Term)
	assert.Equal(t, []byte("1965"), doc.Fields[0].Stored)
	assert.Equal(t, []byte("bcd"), doc.Fields[1].Stored)
	assert.Equal(t, customFieldName, doc.Fields[2].Name)
	assert.Empty(t, doc.Fields[3].Tokens)
	assert.False(t, doc.Fields[3].HasStored)
	assert.Equal(t, float32(2), doc.Boost)
}
