package protocol

// Canonical form: an empty byte slice, field list or analyzer map is nil.
// The codec writes empty and nil identically and always decodes them as nil,
// so decode(encode(x)) equals Canonical(x). Values built with the New*
// constructors are already canonical.

// Canonical returns op with every empty slice and map replaced by nil.
func Canonical(op Operation) Operation {
	switch o := op.(type) {
	case Delete:
		o.ID = cloneBytes(o.ID)
		return o
	case Add:
		o.ID = cloneBytes(o.ID)
		o.Document = CanonicalDocument(o.Document)
		o.FieldToAnalyzer = cloneAnalyzers(o.FieldToAnalyzer)
		return o
	case Update:
		o.ID = cloneBytes(o.ID)
		o.Document = CanonicalDocument(o.Document)
		o.FieldToAnalyzer = cloneAnalyzers(o.FieldToAnalyzer)
		return o
	default:
		return op
	}
}

func CanonicalDocument(doc Document) Document {
	return NewDocument(doc.Boost, canonicalFields(doc.Fields)...)
}

func canonicalFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = CanonicalField(f)
	}
	return out
}

// CanonicalField replaces an empty byte payload with nil.
func CanonicalField(f Field) Field {
	switch v := f.(type) {
	case BinaryField:
		v.Value = cloneBytes(v.Value)
		return v
	case TokenStreamField:
		v.SerializedAttributes = cloneBytes(v.SerializedAttributes)
		return v
	case ReaderField:
		v.SerializedReader = cloneBytes(v.SerializedReader)
		return v
	case CustomField:
		v.SerializedInstance = cloneBytes(v.SerializedInstance)
		return v
	default:
		return f
	}
}
