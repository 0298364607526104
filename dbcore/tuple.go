package dbcore

// This file defines Tuple and TupleDesc operations: construction,
// equality, merging, and the fixed-width binary codec used to read and
// write tuples to and from heap pages.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Equals reports whether two TupleDescs have the same field types in the
// same order. Field names and TableQualifier are ignored.
func (d1 *TupleDesc) Equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// Copy returns a TupleDesc with its own backing field slice.
func (td *TupleDesc) Copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// SetTableAlias rewrites the TableQualifier of every field to alias.
func (td *TupleDesc) SetTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// Merge concatenates the fields of desc2 onto the fields of desc, returning
// a new TupleDesc. Merge is associative: field count equals the sum of the
// operand field counts, and merging three descriptors left- or
// right-associated yields the same field sequence.
func (desc *TupleDesc) Merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// width returns the on-disk size in bytes of a tuple with this descriptor.
func (td *TupleDesc) width() int {
	w := 0
	for _, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			w += 8
		case StringType:
			w += StringLength
		}
	}
	return w
}

// ================== Tuple values ======================

// DBValue is the interface satisfied by a tuple field's runtime value.
type DBValue interface {
	// EvalPred compares the receiver to v using op.
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is an integer field value.
type IntField struct {
	Value int64
}

// EvalPred implements DBValue for integer comparisons.
func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	return evalOrdered(f.Value, other.Value, op)
}

// StringField is a string field value, stored on disk as a fixed-width,
// zero-padded byte array of length StringLength.
type StringField struct {
	Value string
}

// EvalPred implements DBValue for string comparisons.
func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	return evalOrdered(f.Value, other.Value, op)
}

type ordered interface {
	~int64 | ~string
}

func evalOrdered[T ordered](a, b T, op BoolOp) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpNotEquals:
		return a != b
	case OpLessThan:
		return a < b
	case OpLessThanOrEqual:
		return a <= b
	case OpGreaterThan:
		return a > b
	case OpGreaterThanOrEqual:
		return a >= b
	}
	return false
}

// Tuple is the contents of a single row: its descriptor, its field values,
// and (if it was read from a HeapFile) the RecordID it was read from.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	padded := make([]byte, StringLength)
	copy(padded, []byte(f.Value))
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.LittleEndian, f.Value)
}

// writeTo serializes t's fields, in order, into b using a fixed-width
// little-endian encoding.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("dbcore: unsupported field type %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	raw := make([]byte, StringLength)
	if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int64
	if err := binary.Read(b, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

// readTupleFrom deserializes one tuple matching desc from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			sf, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, sf)
		default:
			intf, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, intf)
		}
	}
	return t, nil
}

// Equals reports whether t1 and t2 have equal descriptors and equal fields.
func (t1 *Tuple) Equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.Equals(&t2.Desc) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// Project returns a new Tuple containing only the named fields, in the
// order given. A field matching both TableQualifier and name is preferred
// over one matching only by name.
func (t *Tuple) Project(fields []FieldType) (*Tuple, error) {
	projected := &Tuple{Desc: TupleDesc{}, Fields: []DBValue{}}
	for _, want := range fields {
		idx := -1
		for i, have := range t.Desc.Fields {
			if want.Fname == have.Fname && want.TableQualifier == have.TableQualifier {
				idx = i
				break
			}
		}
		if idx == -1 {
			for i, have := range t.Desc.Fields {
				if want.Fname == have.Fname {
					idx = i
					break
				}
			}
		}
		if idx == -1 {
			return nil, GoDBError{NoSuchElement, fmt.Sprintf("field %s.%s not found", want.TableQualifier, want.Fname)}
		}
		projected.Fields = append(projected.Fields, t.Fields[idx])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[idx])
	}
	return projected, nil
}

var winWidth = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	remLen := colWid - (len(v) + 3)
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	}
	if colWid-4 < 0 || colWid-4 > len(v) {
		return " " + v + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString renders a table header for this descriptor; aligned selects
// fixed-width columnar formatting over comma-separated.
func (d *TupleDesc) HeaderString(aligned bool) string {
	out := ""
	for i, f := range d.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		if aligned {
			out = fmt.Sprintf("%s %s", out, fmtCol(name, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			out = fmt.Sprintf("%s%s%s", out, sep, name)
		}
	}
	return out
}

// PrettyPrintString renders t's field values the same way HeaderString
// renders its descriptor.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	out := ""
	for i, f := range t.Fields {
		str := ""
		switch v := f.(type) {
		case IntField:
			str = strconv.FormatInt(v.Value, 10)
		case StringField:
			str = v.Value
		}
		if aligned {
			out = fmt.Sprintf("%s %s", out, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			out = fmt.Sprintf("%s%s%s", out, sep, str)
		}
	}
	return out
}
