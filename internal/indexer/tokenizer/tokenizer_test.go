package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The Running of the Dunes, 1965!")
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
	}
	assert.Equal(t, []string{"runn", "dun", "1965"}, terms)
	assert.Equal(t, 2, tokens[2].Position)
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"relational": "relate",
		"ponies":     "pony",
		"cats":       "cat",
		"is":         "is",
		"glass":      "glass",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestKeyword(t *testing.T) {
	assert.Nil(t, Keyword(""))
	assert.Equal(t, []Token{{Term: "Mixed Case", Position: 0}}, Keyword("Mixed Case"))
}
