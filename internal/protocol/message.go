// Package protocol defines the index-mutation data model exchanged between a
// producer and an index node: messages, operations, documents and the closed
// set of field variants. Values are immutable once constructed.
package protocol

import "fmt"

// Version is the two-byte envelope version prefixed to every message.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Message is one encoded unit: a version pair and the operations it carries.
type Message struct {
	Version    Version
	Operations []Operation
}

// OperationKind enumerates the closed set of operation variants.
type OperationKind uint8

const (
	KindOptimizeAll OperationKind = iota + 1
	KindPurgeAll
	KindDelete
	KindAdd
	KindUpdate
)

func (k OperationKind) String() string {
	switch k {
	case KindOptimizeAll:
		return "OptimizeAll"
	case KindPurgeAll:
		return "PurgeAll"
	case KindDelete:
		return "Delete"
	case KindAdd:
		return "Add"
	case KindUpdate:
		return "Update"
	default:
		return fmt.Sprintf("OperationKind(%d)", uint8(k))
	}
}

// Operation is one logical index mutation. The set of implementations is
// closed to this package.
type Operation interface {
	Kind() OperationKind
	operation()
}

// OptimizeAll asks the index node to optimize every index it owns.
type OptimizeAll struct{}

// PurgeAll removes every document of an entity type.
type PurgeAll struct {
	EntityType string
}

// Delete removes the document identified by EntityType and ID.
type Delete struct {
	EntityType string
	ID         []byte
}

// Add indexes a new document.
type Add struct {
	EntityType      string
	ID              []byte
	Document        Document
	FieldToAnalyzer map[string]string
}

// Update replaces the existing document for EntityType and ID.
type Update struct {
	EntityType      string
	ID              []byte
	Document        Document
	FieldToAnalyzer map[string]string
}

func (OptimizeAll) Kind() OperationKind { return KindOptimizeAll }
func (PurgeAll) Kind() OperationKind    { return KindPurgeAll }
func (Delete) Kind() OperationKind      { return KindDelete }
func (Add) Kind() OperationKind         { return KindAdd }
func (Update) Kind() OperationKind      { return KindUpdate }

func (OptimizeAll) operation() {}
func (PurgeAll) operation()    {}
func (Delete) operation()      {}
func (Add) operation()         {}
func (Update) operation()      {}

// NewDelete copies id so the operation does not alias caller memory.
func NewDelete(entityType string, id []byte) Delete {
	return Delete{EntityType: entityType, ID: cloneBytes(id)}
}

// NewAdd builds an Add operation, copying id and the analyzer map.
func NewAdd(entityType string, id []byte, doc Document, fieldToAnalyzer map[string]string) Add {
	return Add{
		EntityType:      entityType,
		ID:              cloneBytes(id),
		Document:        doc,
		FieldToAnalyzer: cloneAnalyzers(fieldToAnalyzer),
	}
}

// NewUpdate builds an Update operation, copying id and the analyzer map.
func NewUpdate(entityType string, id []byte, doc Document, fieldToAnalyzer map[string]string) Update {
	return Update{
		EntityType:      entityType,
		ID:              cloneBytes(id),
		Document:        doc,
		FieldToAnalyzer: cloneAnalyzers(fieldToAnalyzer),
	}
}

// EntityOf returns the entity type an operation targets; OptimizeAll targets
// none and returns "".
func EntityOf(op Operation) string {
	switch o := op.(type) {
	case PurgeAll:
		return o.EntityType
	case Delete:
		return o.EntityType
	case Add:
		return o.EntityType
	case Update:
		return o.EntityType
	default:
		return ""
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneAnalyzers(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
