package indexer

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
)

func benchEngine(b *testing.B) *Engine {
	b.Helper()
	e, err := NewEngine(config.IndexerConfig{DataDir: b.TempDir(), NumShards: 1, SegmentMaxSize: 4 << 20, BulkSegmentFactor: 8})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = e.Close() })
	return e
}

// BenchmarkEngineAdd includes the automatic flushes triggered by the
// segment size threshold.
func BenchmarkEngineAdd(b *testing.B) {
	e := benchEngine(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.AddDocument(book(fmt.Sprint(i), "distributed search engine with sharded indexes")); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngineSearchAcrossSegments(b *testing.B) {
	e := benchEngine(b)
	for seg := 0; seg < 4; seg++ {
		for i := 0; i < 2500; i++ {
			if err := e.AddDocument(book(fmt.Sprintf("%d-%d", seg, i), "distributed search engine")); err != nil {
				b.Fatal(err)
			}
		}
		if err := e.Flush(); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search("title", "search"); err != nil {
			b.Fatal(err)
		}
	}
}
