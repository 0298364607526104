package dbcore

import (
	"bytes"
	"testing"
)

func testTupleDesc() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
}

func TestTupleDescEquals(t *testing.T) {
	d1 := testTupleDesc()
	d2 := testTupleDesc()
	if !d1.Equals(&d2) {
		t.Errorf("expected identical descriptors to be equal")
	}

	d3 := TupleDesc{Fields: []FieldType{{Fname: "name", Ftype: StringType}}}
	if d1.Equals(&d3) {
		t.Errorf("expected descriptors with different field counts to differ")
	}
}

func TestTupleDescMergeIsAssociative(t *testing.T) {
	a := TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	b := TupleDesc{Fields: []FieldType{{Fname: "b", Ftype: IntType}}}
	c := TupleDesc{Fields: []FieldType{{Fname: "c", Ftype: IntType}}}

	left := a.Merge(&b).Merge(&c)
	right := a.Merge(b.Merge(&c))

	if len(left.Fields) != 3 || len(right.Fields) != 3 {
		t.Fatalf("expected 3 fields from either associativity, got %d and %d", len(left.Fields), len(right.Fields))
	}
	for i := range left.Fields {
		if left.Fields[i].Fname != right.Fields[i].Fname {
			t.Errorf("field %d: left=%s right=%s", i, left.Fields[i].Fname, right.Fields[i].Fname)
		}
	}
}

func TestTupleWriteReadRoundTrip(t *testing.T) {
	desc := testTupleDesc()
	tup := &Tuple{
		Desc: desc,
		Fields: []DBValue{
			StringField{"josie"},
			IntField{20},
		},
	}

	buf := new(bytes.Buffer)
	if err := tup.writeTo(buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}

	got, err := readTupleFrom(buf, &desc)
	if err != nil {
		t.Fatalf("readTupleFrom: %v", err)
	}
	if !tup.Equals(got) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, tup)
	}
}

func TestTupleProjectPrefersTableQualifier(t *testing.T) {
	tup := &Tuple{
		Desc: TupleDesc{Fields: []FieldType{
			{Fname: "id", TableQualifier: "a", Ftype: IntType},
			{Fname: "id", TableQualifier: "b", Ftype: IntType},
		}},
		Fields: []DBValue{IntField{1}, IntField{2}},
	}

	projected, err := tup.Project([]FieldType{{Fname: "id", TableQualifier: "b"}})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if projected.Fields[0].(IntField).Value != 2 {
		t.Errorf("expected qualified projection to pick b.id=2, got %v", projected.Fields[0])
	}
}

func TestTupleProjectMissingField(t *testing.T) {
	tup := &Tuple{Desc: testTupleDesc(), Fields: []DBValue{StringField{"josie"}, IntField{20}}}
	if _, err := tup.Project([]FieldType{{Fname: "nope"}}); err == nil {
		t.Errorf("expected error projecting a nonexistent field")
	}
}
