package codec

import (
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

// DocumentBuilder accumulates fields in order and produces an immutable
// Document.
type DocumentBuilder struct {
	boost  float32
	fields []protocol.Field
}

func NewDocumentBuilder(boost float32) *DocumentBuilder {
	return &DocumentBuilder{boost: boost}
}

func (b *DocumentBuilder) Add(f protocol.Field) *DocumentBuilder {
	b.fields = append(b.fields, f)
	return b
}

func (b *DocumentBuilder) Len() int {
	return len(b.fields)
}

// Finish returns a Document that does not share storage with the builder.
func (b *DocumentBuilder) Finish() protocol.Document {
	return protocol.NewDocument(b.boost, b.fields...)
}

// Serializer stages operations for a single outgoing message. Add and Update
// consume the document opened by StartDocument; only one document may be
// open at a time. A Serializer is not safe for concurrent use.
type Serializer struct {
	ops []protocol.Operation
	doc *DocumentBuilder
}

func NewSerializer() *Serializer {
	return &Serializer{}
}

func (s *Serializer) AddOptimizeAll() {
	s.ops = append(s.ops, protocol.OptimizeAll{})
}

func (s *Serializer) AddPurgeAll(entityType string) {
	s.ops = append(s.ops, protocol.PurgeAll{EntityType: entityType})
}

func (s *Serializer) AddDelete(entityType string, id []byte) {
	s.ops = append(s.ops, protocol.NewDelete(entityType, id))
}

// AddOperation stages an operation built elsewhere.
func (s *Serializer) AddOperation(op protocol.Operation) {
	s.ops = append(s.ops, op)
}

func (s *Serializer) StartDocument(boost float32) error {
	if s.doc != nil {
		return apperrors.New(apperrors.ErrDocumentAlreadyOpen, "finish the current document with AddAdd or AddUpdate first")
	}
	s.doc = NewDocumentBuilder(boost)
	return nil
}

func (s *Serializer) AddField(f protocol.Field) error {
	if s.doc == nil {
		return apperrors.New(apperrors.ErrNoOpenDocument, "StartDocument must precede AddField")
	}
	s.doc.Add(f)
	return nil
}

func (s *Serializer) AddAdd(entityType string, id []byte, fieldToAnalyzer map[string]string) error {
	doc, err := s.takeDocument()
	if err != nil {
		return err
	}
	s.ops = append(s.ops, protocol.NewAdd(entityType, id, doc, fieldToAnalyzer))
	return nil
}

func (s *Serializer) AddUpdate(entityType string, id []byte, fieldToAnalyzer map[string]string) error {
	doc, err := s.takeDocument()
	if err != nil {
		return err
	}
	s.ops = append(s.ops, protocol.NewUpdate(entityType, id, doc, fieldToAnalyzer))
	return nil
}

func (s *Serializer) takeDocument() (protocol.Document, error) {
	if s.doc == nil {
		return protocol.Document{}, apperrors.New(apperrors.ErrNoOpenDocument, "StartDocument must precede AddAdd or AddUpdate")
	}
	doc := s.doc.Finish()
	s.doc = nil
	return doc, nil
}

// Len returns the number of staged operations.
func (s *Serializer) Len() int {
	return len(s.ops)
}

// Serialize emits the versioned message for every staged operation and
// resets the serializer.
func (s *Serializer) Serialize() ([]byte, error) {
	if s.doc != nil {
		return nil, apperrors.New(apperrors.ErrDocumentAlreadyOpen, "serialize called while a document is still open")
	}
	data, err := Encode(s.ops)
	if err != nil {
		return nil, err
	}
	s.ops = nil
	return data, nil
}
