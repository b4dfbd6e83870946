package protocol

import "fmt"

// Store controls whether a field value is kept in the index.
type Store uint8

const (
	StoreNo Store = iota
	StoreYes
	StoreCompress
)

var storeTokens = [...]string{"NO", "YES", "COMPRESS"}

func (s Store) String() string {
	if int(s) < len(storeTokens) {
		return storeTokens[s]
	}
	return fmt.Sprintf("Store(%d)", uint8(s))
}

// ParseStore maps a wire token back to a Store.
func ParseStore(token string) (Store, error) {
	for i, t := range storeTokens {
		if t == token {
			return Store(i), nil
		}
	}
	return 0, fmt.Errorf("unknown store token %q", token)
}

// Index controls how a string field is indexed.
type Index uint8

const (
	IndexNo Index = iota
	IndexAnalyzed
	IndexNotAnalyzed
	IndexNotAnalyzedNoNorms
	IndexAnalyzedNoNorms
)

var indexTokens = [...]string{"NO", "ANALYZED", "NOT_ANALYZED", "NOT_ANALYZED_NO_NORMS", "ANALYZED_NO_NORMS"}

func (i Index) String() string {
	if int(i) < len(indexTokens) {
		return indexTokens[i]
	}
	return fmt.Sprintf("Index(%d)", uint8(i))
}

// IsIndexed reports whether the mode produces terms at all.
func (i Index) IsIndexed() bool {
	return i != IndexNo
}

// IsAnalyzed reports whether the value goes through the tokenizer.
func (i Index) IsAnalyzed() bool {
	return i == IndexAnalyzed || i == IndexAnalyzedNoNorms
}

// ParseIndex maps a wire token back to an Index.
func ParseIndex(token string) (Index, error) {
	for i, t := range indexTokens {
		if t == token {
			return Index(i), nil
		}
	}
	return 0, fmt.Errorf("unknown index token %q", token)
}

// TermVector controls term-vector storage for a field.
type TermVector uint8

const (
	TermVectorNo TermVector = iota
	TermVectorYes
	TermVectorWithPositions
	TermVectorWithOffsets
	TermVectorWithPositionsOffsets
)

var termVectorTokens = [...]string{"NO", "YES", "WITH_POSITIONS", "WITH_OFFSETS", "WITH_POSITIONS_OFFSETS"}

func (tv TermVector) String() string {
	if int(tv) < len(termVectorTokens) {
		return termVectorTokens[tv]
	}
	return fmt.Sprintf("TermVector(%d)", uint8(tv))
}

// ParseTermVector maps a wire token back to a TermVector.
func ParseTermVector(token string) (TermVector, error) {
	for i, t := range termVectorTokens {
		if t == token {
			return TermVector(i), nil
		}
	}
	return 0, fmt.Errorf("unknown term vector token %q", token)
}
