package codec

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
)

func benchmarkOps(n int) []protocol.Operation {
	ops := make([]protocol.Operation, 0, n)
	for i := 0; i < n; i++ {
		doc := protocol.NewDocument(1, allFields()...)
		ops = append(ops, protocol.NewAdd("Book", []byte(fmt.Sprintf("book-%d", i)), doc, map[string]string{"title": "standard"}))
	}
	return ops
}

// BenchmarkEncode measures serialization throughput for batches of Add
// operations carrying every field variant.
func BenchmarkEncode(b *testing.B) {
	for _, n := range []int{1, 100} {
		ops := benchmarkOps(n)
		b.Run(fmt.Sprintf("ops_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Encode(ops); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDecode measures deserialization of the same batches.
func BenchmarkDecode(b *testing.B) {
	for _, n := range []int{1, 100} {
		data, err := Encode(benchmarkOps(n))
		if err != nil {
			b.Fatal(err)
		}
		d := NewDeserializer()
		b.Run(fmt.Sprintf("ops_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := d.Decode(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
