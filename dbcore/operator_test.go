package dbcore

import "testing"

func makeOperatorTestVars(t *testing.T) (*TupleDesc, *BufferPool, *HeapFile) {
	t.Helper()
	path := t.TempDir() + "/ops.dat"
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	bp, err := NewBufferPool(25)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	hf, err := NewHeapFile(path, "ops", td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return td, bp, hf
}

func drainOperator(t *testing.T, op Operator) []*Tuple {
	t.Helper()
	var out []*Tuple
	for {
		hasNext, err := op.HasNext()
		if err != nil {
			t.Fatalf("HasNext: %v", err)
		}
		if !hasNext {
			break
		}
		tup, err := op.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, tup)
	}
	return out
}

func TestSeqScanOpYieldsEveryInsertedTuple(t *testing.T) {
	td, bp, hf := makeOperatorTestVars(t)

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	for _, name := range []string{"ann", "bob", "carl"} {
		tup := &Tuple{Desc: *td, Fields: []DBValue{StringField{name}, IntField{1}}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	scanTid := NewTID()
	bp.BeginTransaction(scanTid)
	scan := NewSeqScanOp(hf, "")
	if err := scan.Open(scanTid); err != nil {
		t.Fatalf("Open: %v", err)
	}
	rows := drainOperator(t, scan)
	if len(rows) != 3 {
		t.Errorf("expected 3 rows from the scan, got %d", len(rows))
	}
	scan.Close()
	bp.TransactionComplete(scanTid, true)
}

func TestSeqScanOpRewindRestartsFromTheBeginning(t *testing.T) {
	td, bp, hf := makeOperatorTestVars(t)

	tid := NewTID()
	bp.BeginTransaction(tid)
	tup := &Tuple{Desc: *td, Fields: []DBValue{StringField{"ann"}, IntField{1}}}
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	bp.TransactionComplete(tid, true)

	scanTid := NewTID()
	bp.BeginTransaction(scanTid)
	scan := NewSeqScanOp(hf, "")
	scan.Open(scanTid)
	first := drainOperator(t, scan)
	if len(first) != 1 {
		t.Fatalf("expected 1 row on first pass, got %d", len(first))
	}

	if err := scan.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second := drainOperator(t, scan)
	if len(second) != 1 {
		t.Errorf("expected 1 row after rewind, got %d", len(second))
	}
	scan.Close()
	bp.TransactionComplete(scanTid, true)
}

func TestInsertOpInsertsEveryChildTupleAndReportsCount(t *testing.T) {
	td, bp, hf := makeOperatorTestVars(t)

	sourceTid := NewTID()
	bp.BeginTransaction(sourceTid)
	for _, name := range []string{"ann", "bob"} {
		tup := &Tuple{Desc: *td, Fields: []DBValue{StringField{name}, IntField{1}}}
		if err := bp.InsertTuple(sourceTid, hf, tup); err != nil {
			t.Fatalf("seed InsertTuple: %v", err)
		}
	}
	bp.TransactionComplete(sourceTid, true)

	dest, err := NewHeapFile(hf.BackingFile()+".dest", "ops_dest", td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile(dest): %v", err)
	}

	tid := NewTID()
	bp.BeginTransaction(tid)
	scan := NewSeqScanOp(hf, "")
	if err := scan.Open(tid); err != nil {
		t.Fatalf("Open scan: %v", err)
	}
	insert := NewInsertOp(dest, scan)
	if err := insert.Open(tid); err != nil {
		t.Fatalf("Open insert: %v", err)
	}

	hasNext, err := insert.HasNext()
	if err != nil || !hasNext {
		t.Fatalf("expected HasNext true before draining, err=%v", err)
	}
	result, err := insert.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := result.Fields[0].(IntField).Value; got != 2 {
		t.Errorf("expected insert count 2, got %d", got)
	}
	if _, err := insert.Next(); err == nil {
		t.Errorf("expected a second Next call on an exhausted InsertOp to fail")
	}
	insert.Close()
	bp.TransactionComplete(tid, true)

	if dest.NumPages() == 0 {
		t.Errorf("expected the destination file to have grown past 0 pages")
	}
}

func TestDeleteOpDeletesEveryChildTupleAndReportsCount(t *testing.T) {
	td, bp, hf := makeOperatorTestVars(t)

	tid := NewTID()
	bp.BeginTransaction(tid)
	for _, name := range []string{"ann", "bob", "carl"} {
		tup := &Tuple{Desc: *td, Fields: []DBValue{StringField{name}, IntField{1}}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	bp.TransactionComplete(tid, true)

	deleteTid := NewTID()
	bp.BeginTransaction(deleteTid)
	scan := NewSeqScanOp(hf, "")
	if err := scan.Open(deleteTid); err != nil {
		t.Fatalf("Open scan: %v", err)
	}
	del := NewDeleteOp(hf, scan)
	if err := del.Open(deleteTid); err != nil {
		t.Fatalf("Open delete: %v", err)
	}
	result, err := del.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := result.Fields[0].(IntField).Value; got != 3 {
		t.Errorf("expected delete count 3, got %d", got)
	}
	del.Close()
	bp.TransactionComplete(deleteTid, true)

	verifyTid := NewTID()
	bp.BeginTransaction(verifyTid)
	iter, err := hf.Iterator(verifyTid)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	remaining, err := iter()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if remaining != nil {
		t.Errorf("expected no tuples left after deleting all rows, got %+v", remaining)
	}
	bp.TransactionComplete(verifyTid, true)
}
