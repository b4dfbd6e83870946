package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/index"
)

// Reader serves term lookups and the document table of one segment file.
type Reader struct {
	file     *os.File
	filePath string
	seq      uint64
	header   SegmentHeader
	dict     []DictEntry
	docs     []index.StoredDoc
	docIndex map[string]int
}

func OpenReader(path string) (*Reader, error) {
	seq, err := ParseSequence(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.filePath = path
	r.seq = seq
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment format version %d", header.Version)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	checksum := crc32.Update(crc32.ChecksumIEEE(dictBytes), crc32.IEEETable, docsBytes)
	if want := binary.LittleEndian.Uint32(footer[0:4]); checksum != want {
		return nil, fmt.Errorf("segment checksum mismatch: got %08x, want %08x", checksum, want)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	var records []storedDocRecord
	if err := json.Unmarshal(docsBytes, &records); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}
	docs := make([]index.StoredDoc, 0, len(records))
	docIndex := make(map[string]int, len(records))
	for i, rec := range records {
		d := index.StoredDoc{Key: rec.Key, Entity: rec.Entity, ID: rec.ID, Boost: rec.Boost}
		for _, sf := range rec.Stored {
			d.Stored = append(d.Stored, index.StoredField{Name: sf.Name, Value: sf.Value})
		}
		docs = append(docs, d)
		docIndex[rec.Key] = i
	}
	return &Reader{
		file:     f,
		header:   header,
		dict:     dict,
		docs:     docs,
		docIndex: docIndex,
	}, nil
}

func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	entry := r.dict[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

// TermList returns every term in dictionary order.
func (r *Reader) TermList() []string {
	terms := make([]string, len(r.dict))
	for i, e := range r.dict {
		terms[i] = e.Term
	}
	return terms
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) Docs() []index.StoredDoc {
	return r.docs
}

func (r *Reader) Doc(key string) (index.StoredDoc, bool) {
	i, ok := r.docIndex[key]
	if !ok {
		return index.StoredDoc{}, false
	}
	return r.docs[i], true
}

func (r *Reader) HasDoc(key string) bool {
	_, ok := r.docIndex[key]
	return ok
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// Seq returns the segment's sequence number.
func (r *Reader) Seq() uint64 {
	return r.seq
}

func (r *Reader) Name() string {
	return filepath.Base(r.filePath)
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
