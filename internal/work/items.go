package work

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

func mismatch(it Item) error {
	return apperrors.Newf(apperrors.ErrHandleMismatch, "%s needs a writer", it.Describe())
}

func describe(kind protocol.OperationKind, entity string, id []byte) string {
	if id == nil {
		return fmt.Sprintf("%s(%s)", kind, entity)
	}
	return fmt.Sprintf("%s(%s#%s)", kind, entity, hex.EncodeToString(id))
}

// AddWork indexes a new document.
type AddWork struct {
	Doc             indexer.Document
	FieldToAnalyzer map[string]string
	Batch           bool
}

func (w AddWork) Kind() protocol.OperationKind { return protocol.KindAdd }
func (w AddWork) Requirement() Requirement     { return RequiresWriter }
func (w AddWork) IsBatch() bool                { return w.Batch }
func (w AddWork) Entity() string               { return w.Doc.Entity }
func (w AddWork) ID() []byte                   { return w.Doc.ID }
func (w AddWork) Describe() string             { return describe(w.Kind(), w.Doc.Entity, w.Doc.ID) }

func (w AddWork) ApplyReader(context.Context, ReaderHandle) error { return mismatch(w) }

func (w AddWork) ApplyWriter(_ context.Context, h WriterHandle) error {
	return h.AddDocument(w.Doc)
}

// UpdateWork replaces a document: every live copy is deleted and the new
// version added through the same writer.
type UpdateWork struct {
	Doc             indexer.Document
	FieldToAnalyzer map[string]string
	Batch           bool
}

func (w UpdateWork) Kind() protocol.OperationKind { return protocol.KindUpdate }
func (w UpdateWork) Requirement() Requirement     { return RequiresWriter }
func (w UpdateWork) IsBatch() bool                { return w.Batch }
func (w UpdateWork) Entity() string               { return w.Doc.Entity }
func (w UpdateWork) ID() []byte                   { return w.Doc.ID }
func (w UpdateWork) Describe() string             { return describe(w.Kind(), w.Doc.Entity, w.Doc.ID) }

func (w UpdateWork) ApplyReader(context.Context, ReaderHandle) error { return mismatch(w) }

func (w UpdateWork) ApplyWriter(_ context.Context, h WriterHandle) error {
	if _, err := h.DeleteDocument(w.Doc.Entity, w.Doc.ID); err != nil {
		return err
	}
	return h.AddDocument(w.Doc)
}

// DeleteWork removes one document by entity type and id.
type DeleteWork struct {
	EntityType string
	DocID      []byte
	Batch      bool
}

func (w DeleteWork) Kind() protocol.OperationKind { return protocol.KindDelete }
func (w DeleteWork) Requirement() Requirement     { return PrefersReader }
func (w DeleteWork) IsBatch() bool                { return w.Batch }
func (w DeleteWork) Entity() string               { return w.EntityType }
func (w DeleteWork) ID() []byte                   { return w.DocID }
func (w DeleteWork) Describe() string             { return describe(w.Kind(), w.EntityType, w.DocID) }

func (w DeleteWork) ApplyReader(_ context.Context, h ReaderHandle) error {
	_, err := h.DeleteDocument(w.EntityType, w.DocID)
	return err
}

func (w DeleteWork) ApplyWriter(ctx context.Context, h WriterHandle) error {
	return w.ApplyReader(ctx, h)
}

// PurgeAllWork removes every document of one entity type.
type PurgeAllWork struct {
	EntityType string
	Batch      bool
}

func (w PurgeAllWork) Kind() protocol.OperationKind { return protocol.KindPurgeAll }
func (w PurgeAllWork) Requirement() Requirement     { return PrefersReader }
func (w PurgeAllWork) IsBatch() bool                { return w.Batch }
func (w PurgeAllWork) Entity() string               { return w.EntityType }
func (w PurgeAllWork) ID() []byte                   { return nil }
func (w PurgeAllWork) Describe() string             { return describe(w.Kind(), w.EntityType, nil) }

func (w PurgeAllWork) ApplyReader(_ context.Context, h ReaderHandle) error {
	_, err := h.PurgeEntity(w.EntityType)
	return err
}

func (w PurgeAllWork) ApplyWriter(ctx context.Context, h WriterHandle) error {
	return w.ApplyReader(ctx, h)
}

// OptimizeWork merges the index into as few segments as possible.
type OptimizeWork struct {
	Batch bool
}

func (w OptimizeWork) Kind() protocol.OperationKind { return protocol.KindOptimizeAll }
func (w OptimizeWork) Requirement() Requirement     { return RequiresWriter }
func (w OptimizeWork) IsBatch() bool                { return w.Batch }
func (w OptimizeWork) Entity() string               { return "" }
func (w OptimizeWork) ID() []byte                   { return nil }
func (w OptimizeWork) Describe() string             { return w.Kind().String() }

func (w OptimizeWork) ApplyReader(context.Context, ReaderHandle) error { return mismatch(w) }

func (w OptimizeWork) ApplyWriter(_ context.Context, h WriterHandle) error {
	return h.Optimize()
}
