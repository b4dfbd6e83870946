package tokenizer

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Index nodes apply mutation messages shard by shard. Each shard keeps its
        own inverted index and applies deletes before adds within one dispatch cycle.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming and stop
        word removal to normalize text into searchable terms. The inverted index maps each
        term to the documents containing it, along with positional information. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkStem(b *testing.B) {
	words := []string{"running", "indexes", "distributed", "happily", "shards"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Stem(words[i%len(words)])
	}
}
