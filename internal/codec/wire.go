package codec

import (
	"errors"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

// recordWriter appends the fields of one named record in protobuf wire
// format. Every field is always written so that presence can be checked on
// decode.
type recordWriter struct {
	buf []byte
}

func (w *recordWriter) uint(num protowire.Number, v uint64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
}

func (w *recordWriter) int32(num protowire.Number, v int32) {
	w.uint(num, protowire.EncodeZigZag(int64(v)))
}

func (w *recordWriter) int64(num protowire.Number, v int64) {
	w.uint(num, protowire.EncodeZigZag(v))
}

func (w *recordWriter) bool(num protowire.Number, v bool) {
	w.uint(num, protowire.EncodeBool(v))
}

func (w *recordWriter) float32(num protowire.Number, v float32) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed32Type)
	w.buf = protowire.AppendFixed32(w.buf, math.Float32bits(v))
}

func (w *recordWriter) float64(num protowire.Number, v float64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed64Type)
	w.buf = protowire.AppendFixed64(w.buf, math.Float64bits(v))
}

func (w *recordWriter) bytes(num protowire.Number, v []byte) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

func (w *recordWriter) string(num protowire.Number, v string) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
}

// union writes a named-union member: a single length-delimited field whose
// number is the variant tag.
func appendUnion(dst []byte, tag protowire.Number, payload []byte) []byte {
	dst = protowire.AppendTag(dst, tag, protowire.BytesType)
	return protowire.AppendBytes(dst, payload)
}

type wireValue struct {
	typ protowire.Type
	u   uint64
	b   []byte
}

// schema lists the field numbers a record may contain and their wire types.
type schema map[protowire.Number]protowire.Type

// record is a parsed named record. Values keep arrival order per field.
type record struct {
	name   string
	fields map[protowire.Number][]wireValue
}

func parseRecord(name string, data []byte, s schema) (*record, error) {
	r := &record{name: name, fields: make(map[protowire.Number][]wireValue, len(s))}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, wireError(protowire.ParseError(n), "reading %s field tag", name)
		}
		data = data[n:]
		want, ok := s[num]
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: unexpected field %d", name, num)
		}
		if typ != want {
			return nil, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: field %d has wire type %d, want %d", name, num, typ, want)
		}
		var v wireValue
		v.typ = typ
		switch typ {
		case protowire.VarintType:
			v.u, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			var u32 uint32
			u32, n = protowire.ConsumeFixed32(data)
			v.u = uint64(u32)
		case protowire.Fixed64Type:
			v.u, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			v.b, n = protowire.ConsumeBytes(data)
		default:
			return nil, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: unsupported wire type %d", name, typ)
		}
		if n < 0 {
			return nil, wireError(protowire.ParseError(n), "reading %s field %d", name, num)
		}
		data = data[n:]
		r.fields[num] = append(r.fields[num], v)
	}
	return r, nil
}

func (r *record) one(num protowire.Number, label string) (wireValue, error) {
	vals := r.fields[num]
	switch len(vals) {
	case 0:
		return wireValue{}, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: missing required field %q", r.name, label)
	case 1:
		return vals[0], nil
	default:
		return wireValue{}, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: field %q repeated %d times", r.name, label, len(vals))
	}
}

func (r *record) all(num protowire.Number) []wireValue {
	return r.fields[num]
}

func (r *record) uint(num protowire.Number, label string) (uint64, error) {
	v, err := r.one(num, label)
	return v.u, err
}

func (r *record) int32(num protowire.Number, label string) (int32, error) {
	v, err := r.one(num, label)
	if err != nil {
		return 0, err
	}
	x := protowire.DecodeZigZag(v.u)
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: field %q overflows int32", r.name, label)
	}
	return int32(x), nil
}

func (r *record) int64(num protowire.Number, label string) (int64, error) {
	v, err := r.one(num, label)
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v.u), nil
}

func (r *record) bool(num protowire.Number, label string) (bool, error) {
	v, err := r.one(num, label)
	if err != nil {
		return false, err
	}
	if v.u > 1 {
		return false, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: field %q is not a boolean", r.name, label)
	}
	return protowire.DecodeBool(v.u), nil
}

func (r *record) float32(num protowire.Number, label string) (float32, error) {
	v, err := r.one(num, label)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v.u)), nil
}

func (r *record) float64(num protowire.Number, label string) (float64, error) {
	v, err := r.one(num, label)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v.u), nil
}

// bytes returns a private copy; empty payloads decode as nil.
func (r *record) bytes(num protowire.Number, label string) ([]byte, error) {
	v, err := r.one(num, label)
	if err != nil {
		return nil, err
	}
	if len(v.b) == 0 {
		return nil, nil
	}
	out := make([]byte, len(v.b))
	copy(out, v.b)
	return out, nil
}

func (r *record) string(num protowire.Number, label string) (string, error) {
	v, err := r.one(num, label)
	if err != nil {
		return "", err
	}
	return string(v.b), nil
}

// parseUnion reads a named-union record and returns its single member.
func parseUnion(name string, data []byte) (protowire.Number, []byte, error) {
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 {
		return 0, nil, wireError(protowire.ParseError(n), "reading %s tag", name)
	}
	if typ != protowire.BytesType {
		return 0, nil, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: member %d has wire type %d", name, num, typ)
	}
	payload, m := protowire.ConsumeBytes(data[n:])
	if m < 0 {
		return 0, nil, wireError(protowire.ParseError(m), "reading %s member %d", name, num)
	}
	if rest := len(data) - n - m; rest != 0 {
		return 0, nil, apperrors.Newf(apperrors.ErrDecodeMalformed, "%s: %d trailing bytes after member %d", name, rest, num)
	}
	return num, payload, nil
}

func wireError(err error, format string, args ...any) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.Wrap(apperrors.ErrDecodeTruncated, err, format, args...)
	}
	return apperrors.Wrap(apperrors.ErrDecodeMalformed, err, format, args...)
}
