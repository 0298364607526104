package dbcore

// DeleteOp drains its child operator and deletes every tuple it produces
// from a HeapFile, then yields a single one-column "count" tuple.

type DeleteOp struct {
	deleteFile *HeapFile
	child      Operator
	res        *TupleDesc

	tid     TransactionID
	emitted bool
}

// NewDeleteOp constructs an operator that deletes the records of child from
// deleteFile when driven.
func NewDeleteOp(deleteFile *HeapFile, child Operator) *DeleteOp {
	return &DeleteOp{
		deleteFile: deleteFile,
		child:      child,
		res: &TupleDesc{Fields: []FieldType{{
			Fname: "count",
			Ftype: IntType,
		}}},
	}
}

// Descriptor implements Operator: a one-column "count" descriptor.
func (dop *DeleteOp) Descriptor() *TupleDesc {
	return dop.res
}

// Open implements Operator.
func (dop *DeleteOp) Open(tid TransactionID) error {
	dop.tid = tid
	dop.emitted = false
	return dop.child.Open(tid)
}

// HasNext implements Operator: true until the single count tuple has been
// emitted.
func (dop *DeleteOp) HasNext() (bool, error) {
	return !dop.emitted, nil
}

// Next drains the child operator, deleting every tuple it produces, and
// returns a single tuple with the count of rows deleted.
func (dop *DeleteOp) Next() (*Tuple, error) {
	if dop.emitted {
		return nil, GoDBError{NoSuchElement, "delete operator already exhausted"}
	}

	var count int64
	for {
		hasNext, err := dop.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasNext {
			break
		}
		t, err := dop.child.Next()
		if err != nil {
			return nil, err
		}
		bp := dop.deleteFile.bufPool
		if err := bp.DeleteTuple(dop.tid, dop.deleteFile, t); err != nil {
			return nil, err
		}
		count++
	}

	dop.emitted = true
	return &Tuple{
		Desc:   *dop.Descriptor(),
		Fields: []DBValue{IntField{count}},
	}, nil
}

// Rewind implements Operator by rewinding the child and resetting emitted
// state, so Next will re-execute the delete.
func (dop *DeleteOp) Rewind() error {
	dop.emitted = false
	return dop.child.Rewind()
}

// Close implements Operator.
func (dop *DeleteOp) Close() error {
	return dop.child.Close()
}
