package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entry(entity, id string, terms ...string) Entry {
	e := Entry{Doc: StoredDoc{Key: DocKey(entity, []byte(id)), Entity: entity, ID: []byte(id)}}
	for i, term := range terms {
		e.Terms = append(e.Terms, IndexedTerm{Term: term, Position: i})
	}
	return e
}

func TestMemoryIndexReplaceRemovesStaleTerms(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(entry("Book", "1", "title:dune", "title:dune"))
	m.AddDocument(entry("Book", "1", "title:emma"))

	assert.Empty(t, m.Search("title:dune"))
	postings := m.Search("title:emma")
	assert.Len(t, postings, 1)
	assert.Equal(t, 1, m.DocCount())
}

func TestMemoryIndexFrequencyAndPositions(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(entry("Book", "1", "title:dune", "title:the", "title:dune"))
	postings := m.Search("title:dune")
	assert.Equal(t, 2, postings[0].Frequency)
	assert.Equal(t, []int{0, 2}, postings[0].Positions)
}

func TestMemoryIndexRemoveEntity(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(entry("Book", "1", "a"))
	m.AddDocument(entry("Book", "2", "a"))
	m.AddDocument(entry("Author", "1", "a"))

	assert.Equal(t, 2, m.RemoveEntity("Book"))
	assert.Equal(t, []string{DocKey("Author", []byte("1"))}, m.Keys(""))
	assert.False(t, m.RemoveDocument(DocKey("Book", []byte("1"))))
}

func TestMemoryIndexSnapshotSortedAndReset(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(entry("Book", "2", "b", "a"))
	m.AddDocument(entry("Book", "1", "a"))

	entries, docs := m.Snapshot()
	assert.Equal(t, "a", entries[0].Term)
	assert.Len(t, entries[0].Postings, 2)
	assert.Less(t, docs[0].Key, docs[1].Key)
	assert.Positive(t, m.Size())

	m.Reset()
	assert.Zero(t, m.Size())
	assert.Zero(t, m.DocCount())
}

func TestDocKeyEntity(t *testing.T) {
	key := DocKey("com.example/Book", []byte{0xff, 0x00})
	assert.Equal(t, "com.example/Book/ff00", key)
	assert.Equal(t, "com.example/Book", EntityOfKey(key))
}
