package index

import (
	"fmt"
	"testing"
)

var benchTerms = []string{"body:search", "body:engine", "body:distribut", "body:index", "body:query", "body:process"}

// BenchmarkMemoryIndexAdd measures per-document insert throughput.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddDocument(entry("Book", fmt.Sprintf("doc-%d", i), benchTerms...))
	}
}

// BenchmarkMemoryIndexSearch measures single-term lookup latency over 10 000
// documents.
func BenchmarkMemoryIndexSearch(b *testing.B) {
	mi := NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		mi.AddDocument(entry("Book", fmt.Sprintf("doc-%d", i), benchTerms...))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = mi.Search("body:search")
	}
}

func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	mi := NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		mi.AddDocument(entry("Book", fmt.Sprintf("doc-%d", i), benchTerms...))
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = mi.Search("body:search")
		}
	})
}
