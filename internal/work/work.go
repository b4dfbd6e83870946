// Package work turns decoded index operations into work items that know which
// index handle they need and how to apply themselves to it.
package work

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
)

// Requirement is the kind of index handle a work item needs.
type Requirement uint8

const (
	RequiresReader Requirement = iota + 1
	PrefersReader
	RequiresWriter
	PrefersWriter
)

func (r Requirement) String() string {
	switch r {
	case RequiresReader:
		return "requires_reader"
	case PrefersReader:
		return "prefers_reader"
	case RequiresWriter:
		return "requires_writer"
	case PrefersWriter:
		return "prefers_writer"
	default:
		return "unknown"
	}
}

// ReaderHandle is the delete-capable view of an index opened for reading.
type ReaderHandle interface {
	DeleteDocument(entity string, id []byte) (int, error)
	PurgeEntity(entity string) (int, error)
}

// WriterHandle is a full index writer.
type WriterHandle interface {
	ReaderHandle
	AddDocument(doc indexer.Document) error
	Optimize() error
}

// Item is one unit of work for a dispatch cycle.
type Item interface {
	Kind() protocol.OperationKind
	Requirement() Requirement
	// IsBatch reports whether the item belongs to a bulk reindexing run.
	IsBatch() bool
	// Entity and ID route the item to a shard; a nil ID means every shard.
	Entity() string
	ID() []byte
	ApplyReader(ctx context.Context, h ReaderHandle) error
	ApplyWriter(ctx context.Context, h WriterHandle) error
	Describe() string
}

// Options apply to every item built from one message.
type Options struct {
	Batch bool
}
