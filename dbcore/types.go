// Package dbcore implements the transactional storage core of a small
// teaching relational database: a page cache, a per-page lock table, a
// waits-for deadlock detector, and the heap file format they all operate on.
package dbcore

import (
	"fmt"

	"github.com/google/uuid"
)

// DBType is the type of a tuple field, e.g. IntType or StringType.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used internally during parsing, when the type is not yet known
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names one column of a TupleDesc: its name and its DBType.
// TableQualifier may be empty; it exists so that merged descriptors can
// still disambiguate same-named columns from different tables.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the "type" of a tuple: an ordered list of FieldTypes.
type TupleDesc struct {
	Fields []FieldType
}

// BoolOp is a comparison operator used by predicates and histograms.
type BoolOp int

const (
	OpEquals BoolOp = iota
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

func (op BoolOp) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	}
	return "?"
}

// TransactionID is the opaque handle of a transaction, minted by NewTID and
// registered with BufferPool.BeginTransaction. It wraps a uuid.UUID rather
// than an incrementing counter so that callers never need a shared mutex
// just to mint one, and
// so that IDs are safe to put directly into log fields.
type TransactionID struct {
	id uuid.UUID
}

// NewTID mints a fresh, globally unique transaction identifier.
func NewTID() TransactionID {
	return TransactionID{id: uuid.New()}
}

func (t TransactionID) String() string {
	return t.id.String()
}

// IsZero reports whether t is the zero value, i.e. was never assigned by NewTID.
func (t TransactionID) IsZero() bool {
	return t.id == uuid.Nil
}

// PageID uniquely identifies a page within a table's heap file. It is a
// plain value type so it can be used directly as a map key.
type PageID struct {
	TableID    string
	PageNumber int
}

func (p PageID) String() string {
	return fmt.Sprintf("%s:%d", p.TableID, p.PageNumber)
}

// RecordID locates a tuple within a heap file: the page it lives on and its
// slot within that page.
type RecordID struct {
	PageNo int
	SlotNo int
}

// Page is the unit of disk and cache transfer. HeapPage is the only
// implementation in this package.
type Page interface {
	PageID() PageID
	IsDirty() bool
	SetDirty(tid TransactionID, dirty bool)
	DirtiedBy() (TransactionID, bool)
	File() DBFile
	toBuffer() ([]byte, error)
}

// DBFile is the narrow interface the buffer pool requires of a table's
// on-disk storage in order to service a cache miss or an eviction, plus
// the sequential scan that table statistics are computed from.
type DBFile interface {
	TableID() string
	Descriptor() *TupleDesc
	ReadPage(pageNo int) (Page, error)
	FlushPage(p Page) error
	NumPages() int
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// Operator is the iterator protocol the core's heap-file scan honors and
// that InsertOp/DeleteOp implement. The broader relational operator tree
// (joins, sorts, projections) is out of scope for this package.
type Operator interface {
	Open(tid TransactionID) error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close() error
	Descriptor() *TupleDesc
}

// ErrorCode classifies a GoDBError.
type ErrorCode int

const (
	InvalidPage ErrorCode = iota
	DbException
	TransactionAborted
	NoSuchElement
	IoError
	TypeMismatchError
	MalformedDataError
	IllegalArgumentError
	AmbiguousNameError
	IncompatibleTypesError
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidPage:
		return "InvalidPage"
	case DbException:
		return "DbException"
	case TransactionAborted:
		return "TransactionAborted"
	case NoSuchElement:
		return "NoSuchElement"
	case IoError:
		return "IoError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case MalformedDataError:
		return "MalformedDataError"
	case IllegalArgumentError:
		return "IllegalArgumentError"
	case AmbiguousNameError:
		return "AmbiguousNameError"
	case IncompatibleTypesError:
		return "IncompatibleTypesError"
	}
	return "UnknownError"
}

// GoDBError is the single error type the core raises. Code lets callers
// branch on the failure category; Msg carries a human-readable detail.
type GoDBError struct {
	Code ErrorCode
	Msg  string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a GoDBError,
// looking through any github.com/pingcap/errors wrapping applied at I/O
// boundaries. The second return is false if err is not a GoDBError at all.
func CodeOf(err error) (ErrorCode, bool) {
	type causer interface{ Cause() error }
	for err != nil {
		if ge, ok := err.(GoDBError); ok {
			return ge.Code, true
		}
		c, ok := err.(causer)
		if !ok {
			return 0, false
		}
		err = c.Cause()
	}
	return 0, false
}
