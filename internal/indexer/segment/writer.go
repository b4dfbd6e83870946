package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/index"
)

// MagicBytes identifies a valid .irsg segment file.
const (
	MagicBytes    uint32 = 0x49525347
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".irsg"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type storedDocRecord struct {
	Key    string              `json:"k"`
	Entity string              `json:"e"`
	ID     []byte              `json:"i"`
	Boost  float32             `json:"b"`
	Stored []storedFieldRecord `json:"s,omitempty"`
}

type storedFieldRecord struct {
	Name  string `json:"n"`
	Value []byte `json:"v"`
}

// Writer serialises term entries and document tables into new segment files.
// Every segment gets the next sequence number, encoded in its file name.
type Writer struct {
	dataDir string
	seq     atomic.Uint64
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Next returns the sequence number the next Write will use.
func (w *Writer) Next() uint64 {
	return w.seq.Load() + 1
}

// Observe makes later writes use sequence numbers above seq.
func (w *Writer) Observe(seq uint64) {
	for {
		cur := w.seq.Load()
		if seq <= cur || w.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// FileName returns the segment file name for seq. Names sort in sequence order.
func FileName(seq uint64) string {
	return fmt.Sprintf("seg_%020d%s", seq, FileExt)
}

// ParseSequence extracts the sequence number from a segment file name.
func ParseSequence(name string) (uint64, error) {
	digits, ok := strings.CutPrefix(name, "seg_")
	if ok {
		digits, ok = strings.CutSuffix(digits, FileExt)
	}
	if !ok || len(digits) != 20 {
		return 0, fmt.Errorf("not a segment file name: %q", name)
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing segment sequence of %q: %w", name, err)
	}
	return seq, nil
}

// Write atomically creates a new segment file.
func (w *Writer) Write(entries []index.TermEntry, docs []index.StoredDoc) (string, error) {
	if len(entries) == 0 && len(docs) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	segmentName := FileName(w.seq.Add(1))
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := postingsStart
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset - postingsStart,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
	}
	postingsSize := offset - postingsStart

	dictStart := offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	docsStart := dictStart + int64(len(dictData))

	records := make([]storedDocRecord, 0, len(docs))
	for _, d := range docs {
		rec := storedDocRecord{Key: d.Key, Entity: d.Entity, ID: d.ID, Boost: d.Boost}
		for _, sf := range d.Stored {
			rec.Stored = append(rec.Stored, storedFieldRecord{Name: sf.Name, Value: sf.Value})
		}
		records = append(records, rec)
	}
	docsData, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling document table: %w", err)
	}
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document table: %w", err)
	}

	checksum := crc32.ChecksumIEEE(dictData)
	checksum = crc32.Update(checksum, crc32.IEEETable, docsData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(docs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(len(docsData)))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(entries)))
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(len(docs)))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsSize))
	binary.LittleEndian.PutUint64(headerBytes[48:56], uint64(docsStart))
	binary.LittleEndian.PutUint64(headerBytes[56:64], uint64(len(docsData)))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
