package protocol

import "fmt"

// FieldKind enumerates the closed set of field variants.
type FieldKind uint8

const (
	FieldCustom FieldKind = iota + 1
	FieldNumericInt
	FieldNumericLong
	FieldNumericFloat
	FieldNumericDouble
	FieldBinary
	FieldString
	FieldTokenStream
	FieldReader
)

func (k FieldKind) String() string {
	switch k {
	case FieldCustom:
		return "CustomFieldable"
	case FieldNumericInt:
		return "NumericIntField"
	case FieldNumericLong:
		return "NumericLongField"
	case FieldNumericFloat:
		return "NumericFloatField"
	case FieldNumericDouble:
		return "NumericDoubleField"
	case FieldBinary:
		return "BinaryField"
	case FieldString:
		return "StringField"
	case FieldTokenStream:
		return "TokenStreamField"
	case FieldReader:
		return "ReaderField"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// Field is one typed, named unit of indexable data.
type Field interface {
	FieldKind() FieldKind
	FieldName() string
	field()
}

// FieldOptions holds the attributes shared by every named field variant.
type FieldOptions struct {
	Name                     string
	Boost                    float32
	OmitNorms                bool
	OmitTermFreqAndPositions bool
}

// NumericOptions holds the attributes shared by the four numeric variants.
type NumericOptions struct {
	FieldOptions
	PrecisionStep int32
	Store         Store
	Indexed       bool
}

type NumericIntField struct {
	NumericOptions
	Value int32
}

type NumericLongField struct {
	NumericOptions
	Value int64
}

type NumericFloatField struct {
	NumericOptions
	Value float32
}

type NumericDoubleField struct {
	NumericOptions
	Value float64
}

// BinaryField carries a raw value; Offset and Length select the meaningful
// window of Value as the producer declared it.
type BinaryField struct {
	FieldOptions
	Value  []byte
	Offset int32
	Length int32
}

type StringField struct {
	FieldOptions
	Value      string
	Store      Store
	Index      Index
	TermVector TermVector
}

// TokenStreamField transports a pre-serialized token attribute stream. The
// codec never interprets SerializedAttributes.
type TokenStreamField struct {
	FieldOptions
	SerializedAttributes []byte
	TermVector           TermVector
}

// ReaderField transports the content of a character reader.
type ReaderField struct {
	FieldOptions
	SerializedReader []byte
	TermVector       TermVector
}

// CustomField is a caller-supplied field interpreted by the consumer only.
type CustomField struct {
	SerializedInstance []byte
}

func (NumericIntField) FieldKind() FieldKind    { return FieldNumericInt }
func (NumericLongField) FieldKind() FieldKind   { return FieldNumericLong }
func (NumericFloatField) FieldKind() FieldKind  { return FieldNumericFloat }
func (NumericDoubleField) FieldKind() FieldKind { return FieldNumericDouble }
func (BinaryField) FieldKind() FieldKind        { return FieldBinary }
func (StringField) FieldKind() FieldKind        { return FieldString }
func (TokenStreamField) FieldKind() FieldKind   { return FieldTokenStream }
func (ReaderField) FieldKind() FieldKind        { return FieldReader }
func (CustomField) FieldKind() FieldKind        { return FieldCustom }

func (f FieldOptions) FieldName() string { return f.Name }

// FieldName is empty for custom fields; their name lives inside the instance.
func (CustomField) FieldName() string { return "" }

func (NumericIntField) field()    {}
func (NumericLongField) field()   {}
func (NumericFloatField) field()  {}
func (NumericDoubleField) field() {}
func (BinaryField) field()        {}
func (StringField) field()        {}
func (TokenStreamField) field()   {}
func (ReaderField) field()        {}
func (CustomField) field()        {}
