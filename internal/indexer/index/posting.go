package index

import (
	"encoding/hex"
	"strings"
)

// Posting records one document's occurrences of a term. DocKey identifies the
// document as entity type plus hex-encoded id.
type Posting struct {
	DocKey    string
	Frequency int
	Positions []int
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// StoredField is a field value kept verbatim in the document table.
type StoredField struct {
	Name  string
	Value []byte
}

// StoredDoc is the document-table row for one indexed document.
type StoredDoc struct {
	Key    string
	Entity string
	ID     []byte
	Boost  float32
	Stored []StoredField
}

// DocKey builds the key used in postings and tombstones.
func DocKey(entity string, id []byte) string {
	return entity + "/" + hex.EncodeToString(id)
}

// EntityOfKey returns the entity type part of a key built by DocKey.
func EntityOfKey(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

// FieldTerm qualifies a term with its field name.
func FieldTerm(field, term string) string {
	return field + ":" + term
}
