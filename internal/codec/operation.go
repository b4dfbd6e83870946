// Package codec implements the binary index-mutation protocol: a two-byte
// major/minor envelope followed by a protobuf-wire-format record made of
// named records and named unions. The set of operation and field variants is
// closed; unknown tags are always fatal.
package codec

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/errors"
)

const (
	// MajorVersion must match exactly for a message to be interpretable.
	MajorVersion uint8 = 1
	// MinorVersion is advisory: newer minors are decoded with a warning.
	MinorVersion uint8 = 0
	// PayloadVersion is the only in-band schema version understood.
	PayloadVersion uint64 = 1

	envelopeSize = 2
	maxUnionTag  = 255
)

// OwnVersion is the envelope version this codec writes.
var OwnVersion = protocol.Version{Major: MajorVersion, Minor: MinorVersion}

const (
	msgVersion protowire.Number = iota + 1
	msgOperations
)

const (
	opClass protowire.Number = iota + 1
	opID
	opDocument
	opFieldToAnalyzer
)

const (
	docBoost protowire.Number = iota + 1
	docFieldables
)

const (
	entryKey protowire.Number = iota + 1
	entryValue
)

var (
	messageSchema = schema{
		msgVersion:    protowire.VarintType,
		msgOperations: protowire.BytesType,
	}
	optimizeAllSchema = schema{}
	purgeAllSchema    = schema{
		opClass: protowire.BytesType,
	}
	deleteSchema = schema{
		opClass: protowire.BytesType,
		opID:    protowire.BytesType,
	}
	addSchema = schema{
		opClass:           protowire.BytesType,
		opID:              protowire.BytesType,
		opDocument:        protowire.BytesType,
		opFieldToAnalyzer: protowire.BytesType,
	}
	documentSchema = schema{
		docBoost:      protowire.Fixed32Type,
		docFieldables: protowire.BytesType,
	}
	entrySchema = schema{
		entryKey:   protowire.BytesType,
		entryValue: protowire.BytesType,
	}
)

// Encode writes the envelope version followed by the message record holding
// every operation in order.
func Encode(ops []protocol.Operation) ([]byte, error) {
	var w recordWriter
	w.buf = append(w.buf, MajorVersion, MinorVersion)
	w.uint(msgVersion, PayloadVersion)
	for i, op := range ops {
		segment, err := EncodeOperation(op)
		if err != nil {
			return nil, fmt.Errorf("encoding operation %d: %w", i, err)
		}
		w.bytes(msgOperations, segment)
	}
	return w.buf, nil
}

// EncodeOperation returns the union record for one operation.
func EncodeOperation(op protocol.Operation) ([]byte, error) {
	var w recordWriter
	switch o := op.(type) {
	case protocol.OptimizeAll:
	case protocol.PurgeAll:
		w.string(opClass, o.EntityType)
	case protocol.Delete:
		w.string(opClass, o.EntityType)
		w.bytes(opID, o.ID)
	case protocol.Add:
		if err := writeAdd(&w, o.EntityType, o.ID, o.Document, o.FieldToAnalyzer); err != nil {
			return nil, err
		}
	case protocol.Update:
		if err := writeAdd(&w, o.EntityType, o.ID, o.Document, o.FieldToAnalyzer); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownOperationKind, "cannot encode operation of type %T", op)
	}
	return appendUnion(nil, protowire.Number(op.Kind()), w.buf), nil
}

func writeAdd(w *recordWriter, entity string, id []byte, doc protocol.Document, analyzers map[string]string) error {
	w.string(opClass, entity)
	w.bytes(opID, id)
	docBytes, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encoding document for %s: %w", entity, err)
	}
	w.bytes(opDocument, docBytes)
	keys := make([]string, 0, len(analyzers))
	for k := range analyzers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry recordWriter
		entry.string(entryKey, k)
		entry.string(entryValue, analyzers[k])
		w.bytes(opFieldToAnalyzer, entry.buf)
	}
	return nil
}

func encodeDocument(doc protocol.Document) ([]byte, error) {
	var w recordWriter
	w.float32(docBoost, doc.Boost)
	for i, f := range doc.Fields {
		segment, err := EncodeField(f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		w.bytes(docFieldables, segment)
	}
	return w.buf, nil
}

// readEnvelope splits the two-byte version prefix from the payload.
func readEnvelope(data []byte) (protocol.Version, []byte, error) {
	if len(data) < envelopeSize {
		return protocol.Version{}, nil, apperrors.Newf(apperrors.ErrDecodeTruncated, "message is %d bytes, shorter than the version prefix", len(data))
	}
	return protocol.Version{Major: data[0], Minor: data[1]}, data[envelopeSize:], nil
}

func checkMajor(v protocol.Version) error {
	if v.Major != MajorVersion {
		return apperrors.Newf(apperrors.ErrProtocolVersionMismatch,
			"unable to parse message from protocol version %s, current protocol version %s", v, OwnVersion)
	}
	return nil
}

// decodeBody parses the message record after the envelope has been checked.
func decodeBody(payload []byte) ([]protocol.Operation, error) {
	r, err := parseRecord("Message", payload, messageSchema)
	if err != nil {
		return nil, err
	}
	version, err := r.uint(msgVersion, "version")
	if err != nil {
		return nil, err
	}
	if version != PayloadVersion {
		return nil, apperrors.Newf(apperrors.ErrUnsupportedPayloadVersion, "serialization protocol not supported, payload version %d", version)
	}
	segments := r.all(msgOperations)
	ops := make([]protocol.Operation, 0, len(segments))
	for i, seg := range segments {
		op, err := DecodeOperation(seg.b)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// DecodeOperation parses one union-tagged operation record.
func DecodeOperation(segment []byte) (protocol.Operation, error) {
	tag, payload, err := parseUnion("Operation", segment)
	if err != nil {
		return nil, err
	}
	if tag > maxUnionTag {
		return nil, apperrors.Newf(apperrors.ErrUnknownOperationKind, "unexpected operation type %d", tag)
	}
	kind := protocol.OperationKind(tag)
	switch kind {
	case protocol.KindOptimizeAll:
		if _, err := parseRecord(kind.String(), payload, optimizeAllSchema); err != nil {
			return nil, err
		}
		return protocol.OptimizeAll{}, nil
	case protocol.KindPurgeAll:
		r, err := parseRecord(kind.String(), payload, purgeAllSchema)
		if err != nil {
			return nil, err
		}
		entity, err := r.string(opClass, "class")
		if err != nil {
			return nil, err
		}
		return protocol.PurgeAll{EntityType: entity}, nil
	case protocol.KindDelete:
		r, err := parseRecord(kind.String(), payload, deleteSchema)
		if err != nil {
			return nil, err
		}
		entity, err := r.string(opClass, "class")
		if err != nil {
			return nil, err
		}
		id, err := r.bytes(opID, "id")
		if err != nil {
			return nil, err
		}
		return protocol.Delete{EntityType: entity, ID: id}, nil
	case protocol.KindAdd, protocol.KindUpdate:
		entity, id, doc, analyzers, err := readAdd(kind, payload)
		if err != nil {
			return nil, err
		}
		if kind == protocol.KindUpdate {
			return protocol.Update{EntityType: entity, ID: id, Document: doc, FieldToAnalyzer: analyzers}, nil
		}
		return protocol.Add{EntityType: entity, ID: id, Document: doc, FieldToAnalyzer: analyzers}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownOperationKind, "unexpected operation type %d", tag)
	}
}

func readAdd(kind protocol.OperationKind, payload []byte) (string, []byte, protocol.Document, map[string]string, error) {
	var doc protocol.Document
	r, err := parseRecord(kind.String(), payload, addSchema)
	if err != nil {
		return "", nil, doc, nil, err
	}
	entity, err := r.string(opClass, "class")
	if err != nil {
		return "", nil, doc, nil, err
	}
	id, err := r.bytes(opID, "id")
	if err != nil {
		return "", nil, doc, nil, err
	}
	docValue, err := r.one(opDocument, "document")
	if err != nil {
		return "", nil, doc, nil, err
	}
	if doc, err = decodeDocument(docValue.b); err != nil {
		return "", nil, doc, nil, fmt.Errorf("document for %s: %w", entity, err)
	}
	var analyzers map[string]string
	entries := r.all(opFieldToAnalyzer)
	if len(entries) > 0 {
		analyzers = make(map[string]string, len(entries))
	}
	for _, e := range entries {
		er, err := parseRecord("FieldToAnalyzerEntry", e.b, entrySchema)
		if err != nil {
			return "", nil, doc, nil, err
		}
		k, err := er.string(entryKey, "key")
		if err != nil {
			return "", nil, doc, nil, err
		}
		v, err := er.string(entryValue, "value")
		if err != nil {
			return "", nil, doc, nil, err
		}
		analyzers[k] = v
	}
	return entity, id, doc, analyzers, nil
}

func decodeDocument(payload []byte) (protocol.Document, error) {
	r, err := parseRecord("Document", payload, documentSchema)
	if err != nil {
		return protocol.Document{}, err
	}
	boost, err := r.float32(docBoost, "boost")
	if err != nil {
		return protocol.Document{}, err
	}
	segments := r.all(docFieldables)
	var fields []protocol.Field
	if len(segments) > 0 {
		fields = make([]protocol.Field, 0, len(segments))
	}
	for i, seg := range segments {
		tag, fieldPayload, err := parseUnion("Fieldable", seg.b)
		if err != nil {
			return protocol.Document{}, err
		}
		if tag > maxUnionTag {
			return protocol.Document{}, apperrors.Newf(apperrors.ErrUnknownFieldKind, "unknown field type %d", tag)
		}
		f, err := DecodeField(protocol.FieldKind(tag), fieldPayload)
		if err != nil {
			return protocol.Document{}, fmt.Errorf("field %d: %w", i, err)
		}
		fields = append(fields, f)
	}
	return protocol.Document{Boost: boost, Fields: fields}, nil
}
