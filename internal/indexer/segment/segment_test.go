package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/index"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	entries := []index.TermEntry{
		{Term: "title:dune", Postings: index.PostingList{{DocKey: "Book/31", Frequency: 1, Positions: []int{0}}}},
		{Term: "title:emma", Postings: index.PostingList{{DocKey: "Book/32", Frequency: 2, Positions: []int{0, 3}}}},
	}
	docs := []index.StoredDoc{
		{Key: "Book/31", Entity: "Book", ID: []byte("1"), Boost: 1, Stored: []index.StoredField{{Name: "title", Value: []byte("Dune")}}},
		{Key: "Book/32", Entity: "Book", ID: []byte("2"), Boost: 1},
	}
	name, err := w.Write(entries, docs)
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	postings, err := r.Search("title:emma")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, []int{0, 3}, postings[0].Positions)

	missing, err := r.Search("title:zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, uint32(2), r.DocCount())
	assert.Equal(t, []string{"title:dune", "title:emma"}, r.TermList())
	doc, ok := r.Doc("Book/31")
	require.True(t, ok)
	assert.Equal(t, "Dune", string(doc.Stored[0].Value))
	assert.False(t, r.HasDoc("Book/99"))
}

func TestWriteRejectsEmpty(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(nil, nil)
	assert.Error(t, err)
}

func TestNamesSortInCreationOrder(t *testing.T) {
	w := NewWriter(t.TempDir())
	docs := []index.StoredDoc{{Key: "A/00", Entity: "A", ID: []byte{0}}}
	first, err := w.Write(nil, docs)
	require.NoError(t, err)
	second, err := w.Write(nil, docs)
	require.NoError(t, err)
	assert.Less(t, first, second)
	assert.Equal(t, uint64(2), w.Next())
}

func TestObserveSkipsUsedSequences(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.Observe(41)
	w.Observe(7)
	name, err := w.Write(nil, []index.StoredDoc{{Key: "A/00", Entity: "A", ID: []byte{0}}})
	require.NoError(t, err)
	assert.Equal(t, FileName(42), name)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint64(42), r.Seq())
}

func TestParseSequence(t *testing.T) {
	seq, err := ParseSequence(FileName(1234))
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), seq)

	for _, bad := range []string{"seg_12.irsg", "tombstones.json", "seg_0000000000000000001x.irsg", FileName(3) + ".tmp"} {
		_, err := ParseSequence(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(nil, []index.StoredDoc{{Key: "A/00", Entity: "A", ID: []byte{0}}})
	require.NoError(t, err)
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize+3] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = OpenReader(path)
	assert.Error(t, err)

	data[0] = 0
	require.NoError(t, os.WriteFile(path, data, 0644))
	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "magic")
}
