// Package indexer implements the local inverted-index store that work items
// are applied to: a memory buffer flushed into immutable segment files, with
// deletes recorded as sequence-tagged tombstones.
package indexer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
)

const tombstoneFile = "tombstones.json"

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	// readers are ordered by segment sequence, oldest first.
	readers []*segment.Reader
	// tombstones hide a key in every segment whose sequence is below the value.
	tombstones map[string]uint64
	mu         sync.RWMutex
	bulk       atomic.Bool
	cfg        config.IndexerConfig
	logger     *slog.Logger
}

func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex:   index.NewMemoryIndex(),
		writer:     segment.NewWriter(cfg.DataDir),
		tombstones: make(map[string]uint64),
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer", "data_dir", cfg.DataDir),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	if err := e.loadTombstones(); err != nil {
		e.closeReaders()
		return nil, fmt.Errorf("loading tombstones: %w", err)
	}
	return e, nil
}

// SetBulk switches the flush threshold between the normal and bulk buffer size.
func (e *Engine) SetBulk(bulk bool) {
	e.bulk.Store(bulk)
}

func (e *Engine) flushThreshold() int64 {
	if e.bulk.Load() && e.cfg.BulkSegmentFactor > 1 {
		return e.cfg.SegmentMaxSize * e.cfg.BulkSegmentFactor
	}
	return e.cfg.SegmentMaxSize
}

func (e *Engine) AddDocument(doc Document) error {
	entry := doc.entry()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.memIndex.AddDocument(entry)
	e.logger.Debug("document indexed in memory",
		"doc_key", entry.Doc.Key,
		"term_count", len(entry.Terms),
		"mem_size", e.memIndex.Size(),
	)
	if threshold := e.flushThreshold(); e.memIndex.Size() >= threshold {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", threshold,
		)
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes every live copy of entity/id and reports how many
// copies were hidden.
func (e *Engine) DeleteDocument(entity string, id []byte) (int, error) {
	key := index.DocKey(entity, id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteKeyLocked(key), nil
}

// PurgeEntity removes every live document of entity.
func (e *Engine) PurgeEntity(entity string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := e.memIndex.RemoveEntity(entity)
	for key := range e.liveSegmentKeysLocked(entity) {
		e.tombstones[key] = e.writer.Next()
		removed++
	}
	return removed, nil
}

func (e *Engine) deleteKeyLocked(key string) int {
	removed := 0
	if e.memIndex.RemoveDocument(key) {
		removed++
	}
	inSegments := false
	for _, r := range e.readers {
		if e.visibleLocked(r, key) && r.HasDoc(key) {
			removed++
			inSegments = true
		}
	}
	if inSegments {
		e.tombstones[key] = e.writer.Next()
	}
	return removed
}

func (e *Engine) visibleLocked(r *segment.Reader, key string) bool {
	return r.Seq() >= e.tombstones[key]
}

// liveSegmentKeysLocked returns keys with a visible copy in some segment,
// filtered to entity unless entity is empty.
func (e *Engine) liveSegmentKeysLocked(entity string) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, r := range e.readers {
		for _, doc := range r.Docs() {
			if entity != "" && doc.Entity != entity {
				continue
			}
			if e.visibleLocked(r, doc.Key) {
				keys[doc.Key] = struct{}{}
			}
		}
	}
	return keys
}

// Commit flushes buffered documents and persists tombstones.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.flushLocked(); err != nil {
		return err
	}
	return e.saveTombstonesLocked()
}

func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	entries, docs := e.memIndex.Snapshot()
	if len(docs) == 0 {
		return nil
	}
	segmentName, err := e.writer.Write(entries, docs)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readers = append(e.readers, reader)
	e.memIndex.Reset()
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", len(e.readers),
	)
	return nil
}

// Merge rewrites every live document into a single segment and drops the
// tombstones it made obsolete.
func (e *Engine) Merge() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.flushLocked(); err != nil {
		return err
	}
	if len(e.readers) <= 1 && len(e.tombstones) == 0 {
		return nil
	}

	// Newest visible copy of each key wins.
	owner := make(map[string]uint64)
	docs := make([]index.StoredDoc, 0)
	for i := len(e.readers) - 1; i >= 0; i-- {
		r := e.readers[i]
		for _, doc := range r.Docs() {
			if _, taken := owner[doc.Key]; taken || !e.visibleLocked(r, doc.Key) {
				continue
			}
			owner[doc.Key] = r.Seq()
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })

	terms := make(map[string]index.PostingList)
	for _, r := range e.readers {
		for _, term := range r.TermList() {
			postings, err := r.Search(term)
			if err != nil {
				return fmt.Errorf("reading postings of %s: %w", r.Name(), err)
			}
			for _, p := range postings {
				if seq, ok := owner[p.DocKey]; ok && seq == r.Seq() {
					terms[term] = append(terms[term], p)
				}
			}
		}
	}
	entries := make([]index.TermEntry, 0, len(terms))
	for term, postings := range terms {
		sort.Slice(postings, func(i, j int) bool { return postings[i].DocKey < postings[j].DocKey })
		entries = append(entries, index.TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Term < entries[j].Term })

	var merged []*segment.Reader
	if len(docs) > 0 {
		name, err := e.writer.Write(entries, docs)
		if err != nil {
			return fmt.Errorf("writing merged segment: %w", err)
		}
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			return fmt.Errorf("opening merged segment: %w", err)
		}
		merged = append(merged, reader)
	}

	old := e.readers
	e.readers = merged
	e.tombstones = make(map[string]uint64)
	if err := e.saveTombstonesLocked(); err != nil {
		return err
	}
	for _, r := range old {
		if err := r.Close(); err != nil {
			e.logger.Error("closing merged-away segment", "segment", r.Name(), "error", err)
		}
		if err := os.Remove(r.Path()); err != nil {
			e.logger.Error("removing merged-away segment", "segment", r.Name(), "error", err)
		}
	}
	e.logger.Info("segments merged",
		"merged_segments", len(old),
		"live_docs", len(docs),
		"terms", len(entries),
	)
	return nil
}

// Search returns postings for an exact field term across the buffer and
// every segment, with the newest visible copy of each document winning.
func (e *Engine) Search(field, term string) (index.PostingList, error) {
	fieldTerm := index.FieldTerm(field, term)
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, key := range e.memIndex.Keys("") {
		seen[key] = struct{}{}
	}
	result := e.memIndex.Search(fieldTerm)
	for i := len(e.readers) - 1; i >= 0; i-- {
		r := e.readers[i]
		postings, err := r.Search(fieldTerm)
		if err != nil {
			return nil, fmt.Errorf("searching segment %s: %w", r.Name(), err)
		}
		for _, p := range postings {
			if _, dup := seen[p.DocKey]; dup || !e.visibleLocked(r, p.DocKey) {
				continue
			}
			result = append(result, p)
		}
		for _, doc := range r.Docs() {
			if e.visibleLocked(r, doc.Key) {
				seen[doc.Key] = struct{}{}
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DocKey < result[j].DocKey })
	return result, nil
}

func (e *Engine) Exists(entity string, id []byte) bool {
	_, ok := e.Get(entity, id)
	return ok
}

// Get returns the newest live stored copy of entity/id.
func (e *Engine) Get(entity string, id []byte) (index.StoredDoc, bool) {
	key := index.DocKey(entity, id)
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.memIndex.Has(key) {
		_, docs := e.memIndex.Snapshot()
		for _, d := range docs {
			if d.Key == key {
				return d, true
			}
		}
	}
	for i := len(e.readers) - 1; i >= 0; i-- {
		r := e.readers[i]
		if !e.visibleLocked(r, key) {
			break
		}
		if doc, ok := r.Doc(key); ok {
			return doc, true
		}
	}
	return index.StoredDoc{}, false
}

// DocCount returns the number of distinct live documents.
func (e *Engine) DocCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := e.liveSegmentKeysLocked("")
	for _, key := range e.memIndex.Keys("") {
		keys[key] = struct{}{}
	}
	return len(keys)
}

// BufferedDocs returns the number of documents not yet flushed to a segment.
func (e *Engine) BufferedDocs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex.DocCount()
}

func (e *Engine) SegmentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.readers)
}

func (e *Engine) Close() error {
	if err := e.Commit(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeReaders()
	return nil
}

func (e *Engine) closeReaders() {
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.FileExt) {
			segFiles = append(segFiles, entry.Name())
		}
	}
	for _, name := range segFiles {
		// Unreadable segments still consume their sequence number.
		if seq, err := segment.ParseSequence(name); err == nil {
			e.writer.Observe(seq)
		}
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	sort.Slice(e.readers, func(i, j int) bool { return e.readers[i].Seq() < e.readers[j].Seq() })
	e.logger.Info("segment recovery complete",
		"segments_loaded", len(e.readers),
		"next_sequence", e.writer.Next(),
	)
	return nil
}

func (e *Engine) loadTombstones() error {
	data, err := os.ReadFile(filepath.Join(e.cfg.DataDir, tombstoneFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &e.tombstones); err != nil {
		return err
	}
	if e.tombstones == nil {
		e.tombstones = make(map[string]uint64)
	}
	return nil
}

func (e *Engine) saveTombstonesLocked() error {
	data, err := json.Marshal(e.tombstones)
	if err != nil {
		return fmt.Errorf("marshaling tombstones: %w", err)
	}
	path := filepath.Join(e.cfg.DataDir, tombstoneFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing tombstones: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming tombstones: %w", err)
	}
	return nil
}
