package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

// Field numbers inside numeric field records.
const (
	numName protowire.Number = iota + 1
	numValue
	numPrecisionStep
	numStore
	numIndexed
	numBoost
	numOmitNorms
	numOmitTermFreq
)

// Field numbers inside binary field records.
const (
	binName protowire.Number = iota + 1
	binValue
	binOffset
	binLength
	binBoost
	binOmitNorms
	binOmitTermFreq
)

// Field numbers inside string field records.
const (
	strName protowire.Number = iota + 1
	strValue
	strStore
	strIndex
	strTermVector
	strBoost
	strOmitNorms
	strOmitTermFreq
)

// Field numbers shared by token stream and reader field records.
const (
	streamName protowire.Number = iota + 1
	streamValue
	streamTermVector
	streamBoost
	streamOmitNorms
	streamOmitTermFreq
)

const customInstance protowire.Number = 1

func numericSchema(value protowire.Type) schema {
	return schema{
		numName:          protowire.BytesType,
		numValue:         value,
		numPrecisionStep: protowire.VarintType,
		numStore:         protowire.BytesType,
		numIndexed:       protowire.VarintType,
		numBoost:         protowire.Fixed32Type,
		numOmitNorms:     protowire.VarintType,
		numOmitTermFreq:  protowire.VarintType,
	}
}

var (
	intSchema    = numericSchema(protowire.VarintType)
	longSchema   = numericSchema(protowire.VarintType)
	floatSchema  = numericSchema(protowire.Fixed32Type)
	doubleSchema = numericSchema(protowire.Fixed64Type)

	binarySchema = schema{
		binName:         protowire.BytesType,
		binValue:        protowire.BytesType,
		binOffset:       protowire.VarintType,
		binLength:       protowire.VarintType,
		binBoost:        protowire.Fixed32Type,
		binOmitNorms:    protowire.VarintType,
		binOmitTermFreq: protowire.VarintType,
	}
	stringSchema = schema{
		strName:         protowire.BytesType,
		strValue:        protowire.BytesType,
		strStore:        protowire.BytesType,
		strIndex:        protowire.BytesType,
		strTermVector:   protowire.BytesType,
		strBoost:        protowire.Fixed32Type,
		strOmitNorms:    protowire.VarintType,
		strOmitTermFreq: protowire.VarintType,
	}
	streamSchema = schema{
		streamName:         protowire.BytesType,
		streamValue:        protowire.BytesType,
		streamTermVector:   protowire.BytesType,
		streamBoost:        protowire.Fixed32Type,
		streamOmitNorms:    protowire.VarintType,
		streamOmitTermFreq: protowire.VarintType,
	}
	customSchema = schema{
		customInstance: protowire.BytesType,
	}
)

// EncodeField returns the union-tagged wire segment for f.
func EncodeField(f protocol.Field) ([]byte, error) {
	payload, err := encodeFieldPayload(f)
	if err != nil {
		return nil, err
	}
	return appendUnion(nil, protowire.Number(f.FieldKind()), payload), nil
}

func encodeFieldPayload(f protocol.Field) ([]byte, error) {
	var w recordWriter
	switch v := f.(type) {
	case protocol.NumericIntField:
		if err := writeNumeric(&w, v.NumericOptions); err != nil {
			return nil, err
		}
		w.int32(numValue, v.Value)
	case protocol.NumericLongField:
		if err := writeNumeric(&w, v.NumericOptions); err != nil {
			return nil, err
		}
		w.int64(numValue, v.Value)
	case protocol.NumericFloatField:
		if err := writeNumeric(&w, v.NumericOptions); err != nil {
			return nil, err
		}
		w.float32(numValue, v.Value)
	case protocol.NumericDoubleField:
		if err := writeNumeric(&w, v.NumericOptions); err != nil {
			return nil, err
		}
		w.float64(numValue, v.Value)
	case protocol.BinaryField:
		w.string(binName, v.Name)
		w.bytes(binValue, v.Value)
		w.int32(binOffset, v.Offset)
		w.int32(binLength, v.Length)
		w.float32(binBoost, v.Boost)
		w.bool(binOmitNorms, v.OmitNorms)
		w.bool(binOmitTermFreq, v.OmitTermFreqAndPositions)
	case protocol.StringField:
		if err := checkTokens(v.Store.String(), v.Index.String(), v.TermVector.String()); err != nil {
			return nil, fmt.Errorf("encoding string field %q: %w", v.Name, err)
		}
		w.string(strName, v.Name)
		w.string(strValue, v.Value)
		w.string(strStore, v.Store.String())
		w.string(strIndex, v.Index.String())
		w.string(strTermVector, v.TermVector.String())
		w.float32(strBoost, v.Boost)
		w.bool(strOmitNorms, v.OmitNorms)
		w.bool(strOmitTermFreq, v.OmitTermFreqAndPositions)
	case protocol.TokenStreamField:
		if err := writeStream(&w, v.FieldOptions, v.SerializedAttributes, v.TermVector); err != nil {
			return nil, err
		}
	case protocol.ReaderField:
		if err := writeStream(&w, v.FieldOptions, v.SerializedReader, v.TermVector); err != nil {
			return nil, err
		}
	case protocol.CustomField:
		w.bytes(customInstance, v.SerializedInstance)
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownFieldKind, "cannot encode field of type %T", f)
	}
	return w.buf, nil
}

func writeNumeric(w *recordWriter, o protocol.NumericOptions) error {
	if _, err := protocol.ParseStore(o.Store.String()); err != nil {
		return fmt.Errorf("encoding numeric field %q: %w", o.Name, err)
	}
	w.string(numName, o.Name)
	w.int32(numPrecisionStep, o.PrecisionStep)
	w.string(numStore, o.Store.String())
	w.bool(numIndexed, o.Indexed)
	w.float32(numBoost, o.Boost)
	w.bool(numOmitNorms, o.OmitNorms)
	w.bool(numOmitTermFreq, o.OmitTermFreqAndPositions)
	return nil
}

func writeStream(w *recordWriter, o protocol.FieldOptions, value []byte, tv protocol.TermVector) error {
	if _, err := protocol.ParseTermVector(tv.String()); err != nil {
		return fmt.Errorf("encoding field %q: %w", o.Name, err)
	}
	w.string(streamName, o.Name)
	w.bytes(streamValue, value)
	w.string(streamTermVector, tv.String())
	w.float32(streamBoost, o.Boost)
	w.bool(streamOmitNorms, o.OmitNorms)
	w.bool(streamOmitTermFreq, o.OmitTermFreqAndPositions)
	return nil
}

func checkTokens(store, index, termVector string) error {
	if _, err := protocol.ParseStore(store); err != nil {
		return err
	}
	if _, err := protocol.ParseIndex(index); err != nil {
		return err
	}
	_, err := protocol.ParseTermVector(termVector)
	return err
}

// DecodeField rebuilds the field variant identified by tag from its record
// payload. Unknown tags fail with ErrUnknownFieldKind.
func DecodeField(tag protocol.FieldKind, payload []byte) (protocol.Field, error) {
	switch tag {
	case protocol.FieldNumericInt:
		r, opts, err := readNumeric(tag, payload, intSchema)
		if err != nil {
			return nil, err
		}
		v, err := r.int32(numValue, "value")
		if err != nil {
			return nil, err
		}
		return protocol.NumericIntField{NumericOptions: opts, Value: v}, nil
	case protocol.FieldNumericLong:
		r, opts, err := readNumeric(tag, payload, longSchema)
		if err != nil {
			return nil, err
		}
		v, err := r.int64(numValue, "value")
		if err != nil {
			return nil, err
		}
		return protocol.NumericLongField{NumericOptions: opts, Value: v}, nil
	case protocol.FieldNumericFloat:
		r, opts, err := readNumeric(tag, payload, floatSchema)
		if err != nil {
			return nil, err
		}
		v, err := r.float32(numValue, "value")
		if err != nil {
			return nil, err
		}
		return protocol.NumericFloatField{NumericOptions: opts, Value: v}, nil
	case protocol.FieldNumericDouble:
		r, opts, err := readNumeric(tag, payload, doubleSchema)
		if err != nil {
			return nil, err
		}
		v, err := r.float64(numValue, "value")
		if err != nil {
			return nil, err
		}
		return protocol.NumericDoubleField{NumericOptions: opts, Value: v}, nil
	case protocol.FieldBinary:
		return readBinary(payload)
	case protocol.FieldString:
		return readString(payload)
	case protocol.FieldTokenStream:
		opts, value, tv, err := readStream(tag, payload)
		if err != nil {
			return nil, err
		}
		return protocol.TokenStreamField{FieldOptions: opts, SerializedAttributes: value, TermVector: tv}, nil
	case protocol.FieldReader:
		opts, value, tv, err := readStream(tag, payload)
		if err != nil {
			return nil, err
		}
		return protocol.ReaderField{FieldOptions: opts, SerializedReader: value, TermVector: tv}, nil
	case protocol.FieldCustom:
		r, err := parseRecord(tag.String(), payload, customSchema)
		if err != nil {
			return nil, err
		}
		instance, err := r.bytes(customInstance, "instance")
		if err != nil {
			return nil, err
		}
		return protocol.CustomField{SerializedInstance: instance}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownFieldKind, "unknown field type %d", uint8(tag))
	}
}

func readNumeric(tag protocol.FieldKind, payload []byte, s schema) (*record, protocol.NumericOptions, error) {
	var opts protocol.NumericOptions
	r, err := parseRecord(tag.String(), payload, s)
	if err != nil {
		return nil, opts, err
	}
	if opts.Name, err = r.string(numName, "name"); err != nil {
		return nil, opts, err
	}
	if opts.PrecisionStep, err = r.int32(numPrecisionStep, "precisionStep"); err != nil {
		return nil, opts, err
	}
	if opts.Store, err = readStore(r, numStore); err != nil {
		return nil, opts, err
	}
	if opts.Indexed, err = r.bool(numIndexed, "indexed"); err != nil {
		return nil, opts, err
	}
	if opts.Boost, err = r.float32(numBoost, "boost"); err != nil {
		return nil, opts, err
	}
	if opts.OmitNorms, err = r.bool(numOmitNorms, "omitNorms"); err != nil {
		return nil, opts, err
	}
	if opts.OmitTermFreqAndPositions, err = r.bool(numOmitTermFreq, "omitTermFreqAndPositions"); err != nil {
		return nil, opts, err
	}
	return r, opts, nil
}

func readBinary(payload []byte) (protocol.Field, error) {
	r, err := parseRecord(protocol.FieldBinary.String(), payload, binarySchema)
	if err != nil {
		return nil, err
	}
	var f protocol.BinaryField
	if f.Name, err = r.string(binName, "name"); err != nil {
		return nil, err
	}
	if f.Value, err = r.bytes(binValue, "value"); err != nil {
		return nil, err
	}
	if f.Offset, err = r.int32(binOffset, "offset"); err != nil {
		return nil, err
	}
	if f.Length, err = r.int32(binLength, "length"); err != nil {
		return nil, err
	}
	if f.Boost, err = r.float32(binBoost, "boost"); err != nil {
		return nil, err
	}
	if f.OmitNorms, err = r.bool(binOmitNorms, "omitNorms"); err != nil {
		return nil, err
	}
	if f.OmitTermFreqAndPositions, err = r.bool(binOmitTermFreq, "omitTermFreqAndPositions"); err != nil {
		return nil, err
	}
	return f, nil
}

func readString(payload []byte) (protocol.Field, error) {
	r, err := parseRecord(protocol.FieldString.String(), payload, stringSchema)
	if err != nil {
		return nil, err
	}
	var f protocol.StringField
	if f.Name, err = r.string(strName, "name"); err != nil {
		return nil, err
	}
	if f.Value, err = r.string(strValue, "value"); err != nil {
		return nil, err
	}
	if f.Store, err = readStore(r, strStore); err != nil {
		return nil, err
	}
	token, err := r.string(strIndex, "index")
	if err != nil {
		return nil, err
	}
	if f.Index, err = protocol.ParseIndex(token); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecodeMalformed, err, "%s %q", r.name, f.Name)
	}
	if f.TermVector, err = readTermVector(r, strTermVector); err != nil {
		return nil, err
	}
	if f.Boost, err = r.float32(strBoost, "boost"); err != nil {
		return nil, err
	}
	if f.OmitNorms, err = r.bool(strOmitNorms, "omitNorms"); err != nil {
		return nil, err
	}
	if f.OmitTermFreqAndPositions, err = r.bool(strOmitTermFreq, "omitTermFreqAndPositions"); err != nil {
		return nil, err
	}
	return f, nil
}

func readStream(tag protocol.FieldKind, payload []byte) (protocol.FieldOptions, []byte, protocol.TermVector, error) {
	var opts protocol.FieldOptions
	r, err := parseRecord(tag.String(), payload, streamSchema)
	if err != nil {
		return opts, nil, 0, err
	}
	if opts.Name, err = r.string(streamName, "name"); err != nil {
		return opts, nil, 0, err
	}
	value, err := r.bytes(streamValue, "value")
	if err != nil {
		return opts, nil, 0, err
	}
	tv, err := readTermVector(r, streamTermVector)
	if err != nil {
		return opts, nil, 0, err
	}
	if opts.Boost, err = r.float32(streamBoost, "boost"); err != nil {
		return opts, nil, 0, err
	}
	if opts.OmitNorms, err = r.bool(streamOmitNorms, "omitNorms"); err != nil {
		return opts, nil, 0, err
	}
	if opts.OmitTermFreqAndPositions, err = r.bool(streamOmitTermFreq, "omitTermFreqAndPositions"); err != nil {
		return opts, nil, 0, err
	}
	return opts, value, tv, nil
}

func readStore(r *record, num protowire.Number) (protocol.Store, error) {
	token, err := r.string(num, "store")
	if err != nil {
		return 0, err
	}
	s, err := protocol.ParseStore(token)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDecodeMalformed, err, "%s", r.name)
	}
	return s, nil
}

func readTermVector(r *record, num protowire.Number) (protocol.TermVector, error) {
	token, err := r.string(num, "termVector")
	if err != nil {
		return 0, err
	}
	tv, err := protocol.ParseTermVector(token)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDecodeMalformed, err, "%s", r.name)
	}
	return tv, nil
}
