package work

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

var _ codec.Hydrator = (*Builder)(nil)

// Builder hydrates a deserialized message straight into work items.
type Builder struct {
	opts    Options
	version protocol.Version
	items   []Item
	doc     *protocol.Document
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build replays msg into a fresh Builder and returns its items.
func Build(msg *protocol.Message, opts Options) ([]Item, error) {
	b := NewBuilder(opts)
	if err := codec.Replay(msg, b); err != nil {
		return nil, err
	}
	return b.Items(), nil
}

func (b *Builder) BeginMessage(v protocol.Version) error {
	b.version = v
	b.items = nil
	b.doc = nil
	return nil
}

func (b *Builder) AddOptimizeAll() error {
	b.items = append(b.items, OptimizeWork{Batch: b.opts.Batch})
	return nil
}

func (b *Builder) AddPurgeAll(entityType string) error {
	b.items = append(b.items, PurgeAllWork{EntityType: entityType, Batch: b.opts.Batch})
	return nil
}

func (b *Builder) AddDelete(entityType string, id []byte) error {
	b.items = append(b.items, DeleteWork{EntityType: entityType, DocID: id, Batch: b.opts.Batch})
	return nil
}

func (b *Builder) DefineDocument(boost float32) error {
	if b.doc != nil {
		return apperrors.ErrDocumentAlreadyOpen
	}
	doc := protocol.NewDocument(boost)
	b.doc = &doc
	return nil
}

func (b *Builder) AddField(f protocol.Field) error {
	if b.doc == nil {
		return apperrors.New(apperrors.ErrNoOpenDocument, fmt.Sprintf("field %q", f.FieldName()))
	}
	b.doc.Fields = append(b.doc.Fields, f)
	return nil
}

func (b *Builder) AddAdd(entityType string, id []byte, fieldToAnalyzer map[string]string) error {
	doc, err := b.takeDocument(entityType, id)
	if err != nil {
		return err
	}
	b.items = append(b.items, AddWork{Doc: doc, FieldToAnalyzer: fieldToAnalyzer, Batch: b.opts.Batch})
	return nil
}

func (b *Builder) AddUpdate(entityType string, id []byte, fieldToAnalyzer map[string]string) error {
	doc, err := b.takeDocument(entityType, id)
	if err != nil {
		return err
	}
	b.items = append(b.items, UpdateWork{Doc: doc, FieldToAnalyzer: fieldToAnalyzer, Batch: b.opts.Batch})
	return nil
}

func (b *Builder) takeDocument(entityType string, id []byte) (indexer.Document, error) {
	if b.doc == nil {
		return indexer.Document{}, apperrors.New(apperrors.ErrNoOpenDocument, entityType)
	}
	doc := indexer.Analyze(entityType, id, *b.doc)
	b.doc = nil
	return doc, nil
}

func (b *Builder) EndMessage() error {
	if b.doc != nil {
		return apperrors.ErrDocumentAlreadyOpen
	}
	return nil
}

func (b *Builder) Version() protocol.Version {
	return b.version
}

// Items returns the items built so far in message order.
func (b *Builder) Items() []Item {
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}
