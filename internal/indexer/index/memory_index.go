// Package index holds the in-memory inverted index that buffers documents
// until they are flushed into an immutable segment.
package index

import (
	"sort"
	"sync"
)

// IndexedTerm is one field-qualified term occurrence of a document.
type IndexedTerm struct {
	Term     string
	Position int
}

// Entry is a document ready to be buffered.
type Entry struct {
	Doc   StoredDoc
	Terms []IndexedTerm
}

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]map[string]*Posting
	docs     map[string]StoredDoc
	docTerms map[string][]string
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	m := &MemoryIndex{}
	m.reset()
	return m
}

// AddDocument buffers e, replacing any buffered document with the same key.
func (m *MemoryIndex) AddDocument(e Entry) {
	termData := make(map[string]*Posting)
	for _, t := range e.Terms {
		p, exists := termData[t.Term]
		if !exists {
			p = &Posting{DocKey: e.Doc.Key, Positions: make([]int, 0, 4)}
			termData[t.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, t.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(e.Doc.Key)

	terms := make([]string, 0, len(termData))
	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[string]*Posting)
		}
		m.index[term][e.Doc.Key] = posting
		terms = append(terms, term)
		m.size += int64(len(term) + len(e.Doc.Key) + len(posting.Positions)*8 + 64)
	}
	m.docs[e.Doc.Key] = e.Doc
	m.docTerms[e.Doc.Key] = terms
	for _, f := range e.Doc.Stored {
		m.size += int64(len(f.Name) + len(f.Value))
	}
}

// RemoveDocument drops a buffered document and reports whether it existed.
func (m *MemoryIndex) RemoveDocument(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(key)
}

// RemoveEntity drops every buffered document of entity.
func (m *MemoryIndex) RemoveEntity(entity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, doc := range m.docs {
		if doc.Entity == entity && m.removeLocked(key) {
			removed++
		}
	}
	return removed
}

func (m *MemoryIndex) removeLocked(key string) bool {
	if _, exists := m.docs[key]; !exists {
		return false
	}
	for _, term := range m.docTerms[key] {
		docs := m.index[term]
		delete(docs, key)
		if len(docs) == 0 {
			delete(m.index, term)
		}
	}
	delete(m.docs, key)
	delete(m.docTerms, key)
	return true
}

func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocKey < result[j].DocKey
	})
	return result
}

func (m *MemoryIndex) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[key]
	return ok
}

// Keys lists buffered document keys, optionally filtered to one entity.
func (m *MemoryIndex) Keys(entity string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.docs))
	for key, doc := range m.docs {
		if entity == "" || doc.Entity == entity {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns sorted term entries and documents for a segment flush.
func (m *MemoryIndex) Snapshot() ([]TermEntry, []StoredDoc) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocKey < postings[j].DocKey
		})
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	docs := make([]StoredDoc, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Key < docs[j].Key
	})
	return entries, docs
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MemoryIndex) reset() {
	m.index = make(map[string]map[string]*Posting)
	m.docs = make(map[string]StoredDoc)
	m.docTerms = make(map[string][]string)
	m.size = 0
}
