package indexer

import (
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
)

// customFieldName names the stored slot of custom fields, which carry no name.
const customFieldName = "_custom"

// Field is one analyzed document field.
type Field struct {
	Name   string
	Tokens []tokenizer.Token
	Stored []byte
	// HasStored is set when Stored should be kept even if empty.
	HasStored bool
}

// Document is an entity ready to be indexed by an Engine.
type Document struct {
	Entity string
	ID     []byte
	Boost  float32
	Fields []Field
}

// Key returns the document key shared by postings, tombstones and routing.
func (d Document) Key() string {
	return index.DocKey(d.Entity, d.ID)
}

// Analyze converts a transported document into an indexable one.
func Analyze(entity string, id []byte, doc protocol.Document) Document {
	out := Document{
		Entity: entity,
		ID:     append([]byte(nil), id...),
		Boost:  doc.Boost,
		Fields: make([]Field, 0, len(doc.Fields)),
	}
	for _, f := range doc.Fields {
		out.Fields = append(out.Fields, analyzeField(f))
	}
	return out
}

func analyzeField(f protocol.Field) Field {
	switch v := f.(type) {
	case protocol.StringField:
		out := Field{Name: v.Name}
		switch {
		case v.Index.IsAnalyzed():
			out.Tokens = tokenizer.Tokenize(v.Value)
		case v.Index.IsIndexed():
			out.Tokens = tokenizer.Keyword(v.Value)
		}
		if v.Store != protocol.StoreNo {
			out.Stored, out.HasStored = []byte(v.Value), true
		}
		return out
	case protocol.NumericIntField:
		return numericField(v.NumericOptions, strconv.FormatInt(int64(v.Value), 10))
	case protocol.NumericLongField:
		return numericField(v.NumericOptions, strconv.FormatInt(v.Value, 10))
	case protocol.NumericFloatField:
		return numericField(v.NumericOptions, strconv.FormatFloat(float64(v.Value), 'g', -1, 32))
	case protocol.NumericDoubleField:
		return numericField(v.NumericOptions, strconv.FormatFloat(v.Value, 'g', -1, 64))
	case protocol.BinaryField:
		return Field{Name: v.Name, Stored: binarySlice(v), HasStored: true}
	case protocol.TokenStreamField:
		return Field{Name: v.Name, Stored: v.SerializedAttributes, HasStored: true}
	case protocol.ReaderField:
		return Field{Name: v.Name, Stored: v.SerializedReader, HasStored: true}
	case protocol.CustomField:
		return Field{Name: customFieldName, Stored: v.SerializedInstance, HasStored: true}
	default:
		return Field{Name: f.FieldName()}
	}
}

func numericField(opts protocol.NumericOptions, text string) Field {
	out := Field{Name: opts.Name}
	if opts.Indexed {
		out.Tokens = tokenizer.Keyword(text)
	}
	if opts.Store != protocol.StoreNo {
		out.Stored, out.HasStored = []byte(text), true
	}
	return out
}

// binarySlice honours the field's window, clamped to the value's bounds.
func binarySlice(f protocol.BinaryField) []byte {
	start, end := int(f.Offset), int(f.Offset)+int(f.Length)
	if start < 0 || start > len(f.Value) {
		start = 0
	}
	if f.Length <= 0 || end > len(f.Value) || end < start {
		end = len(f.Value)
	}
	return f.Value[start:end]
}

func (d Document) entry() index.Entry {
	stored := index.StoredDoc{
		Key:    d.Key(),
		Entity: d.Entity,
		ID:     d.ID,
		Boost:  d.Boost,
	}
	var terms []index.IndexedTerm
	for _, f := range d.Fields {
		for _, tok := range f.Tokens {
			terms = append(terms, index.IndexedTerm{Term: index.FieldTerm(f.Name, tok.Term), Position: tok.Position})
		}
		if f.HasStored {
			stored.Stored = append(stored.Stored, index.StoredField{Name: f.Name, Value: f.Stored})
		}
	}
	return index.Entry{Doc: stored, Terms: terms}
}
