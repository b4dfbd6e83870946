package protocol

// Document is the field-level payload of an Add or Update. Field order is
// preserved by the codec although the index does not depend on it.
type Document struct {
	Boost  float32
	Fields []Field
}

// NewDocument copies fields into a new Document. No fields yields a nil
// field list.
func NewDocument(boost float32, fields ...Field) Document {
	if len(fields) == 0 {
		return Document{Boost: boost}
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return Document{Boost: boost, Fields: out}
}
