package dbcore

// InsertOp drains its child operator and inserts every tuple it produces
// into a HeapFile, then yields a single one-column "count" tuple.

type InsertOp struct {
	insertFile *HeapFile
	child      Operator
	res        *TupleDesc

	tid     TransactionID
	done    bool
	emitted bool
}

// NewInsertOp constructs an operator that inserts the records of child into
// insertFile when driven.
func NewInsertOp(insertFile *HeapFile, child Operator) *InsertOp {
	return &InsertOp{
		insertFile: insertFile,
		child:      child,
		res: &TupleDesc{Fields: []FieldType{{
			Fname: "count",
			Ftype: IntType,
		}}},
	}
}

// Descriptor implements Operator: a one-column "count" descriptor.
func (iop *InsertOp) Descriptor() *TupleDesc {
	return iop.res
}

// Open implements Operator.
func (iop *InsertOp) Open(tid TransactionID) error {
	iop.tid = tid
	iop.done = false
	iop.emitted = false
	return iop.child.Open(tid)
}

// HasNext implements Operator: true until the single count tuple has been
// emitted.
func (iop *InsertOp) HasNext() (bool, error) {
	return !iop.emitted, nil
}

// Next drains the child operator, inserting every tuple it produces, and
// returns a single tuple with the count of rows inserted.
func (iop *InsertOp) Next() (*Tuple, error) {
	if iop.emitted {
		return nil, GoDBError{NoSuchElement, "insert operator already exhausted"}
	}

	var count int64
	for {
		hasNext, err := iop.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !hasNext {
			break
		}
		t, err := iop.child.Next()
		if err != nil {
			return nil, err
		}
		bp := iop.insertFile.bufPool
		if err := bp.InsertTuple(iop.tid, iop.insertFile, t); err != nil {
			return nil, err
		}
		count++
	}

	iop.emitted = true
	return &Tuple{
		Desc:   *iop.Descriptor(),
		Fields: []DBValue{IntField{count}},
	}, nil
}

// Rewind implements Operator by rewinding the child and resetting emitted
// state, so Next will re-execute the insert.
func (iop *InsertOp) Rewind() error {
	iop.emitted = false
	return iop.child.Rewind()
}

// Close implements Operator.
func (iop *InsertOp) Close() error {
	return iop.child.Close()
}
