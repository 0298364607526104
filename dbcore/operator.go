package dbcore

// SeqScanOp is the only scan operator in this package: it wraps a HeapFile's
// tuple iterator in the Operator protocol. Join, sort, project, and limit
// operators belong to the relational operator tree and are out of scope.
type SeqScanOp struct {
	file  *HeapFile
	alias string

	iter    func() (*Tuple, error)
	peeked  *Tuple
	hasPeek bool
	lastTID TransactionID
}

// NewSeqScanOp constructs a sequential scan over file. alias, if non-empty,
// becomes the TableQualifier of every field in the returned descriptor.
func NewSeqScanOp(file *HeapFile, alias string) *SeqScanOp {
	return &SeqScanOp{file: file, alias: alias}
}

// Descriptor implements Operator.
func (s *SeqScanOp) Descriptor() *TupleDesc {
	desc := s.file.Descriptor().Copy()
	if s.alias != "" {
		desc.SetTableAlias(s.alias)
	}
	return desc
}

// Open implements Operator.
func (s *SeqScanOp) Open(tid TransactionID) error {
	iter, err := s.file.Iterator(tid)
	if err != nil {
		return err
	}
	s.iter = iter
	s.lastTID = tid
	s.hasPeek = false
	s.peeked = nil
	return nil
}

func (s *SeqScanOp) fill() error {
	if s.hasPeek {
		return nil
	}
	t, err := s.iter()
	if err != nil {
		return err
	}
	s.peeked = t
	s.hasPeek = true
	return nil
}

// HasNext implements Operator; idempotent.
func (s *SeqScanOp) HasNext() (bool, error) {
	if err := s.fill(); err != nil {
		return false, err
	}
	return s.peeked != nil, nil
}

// Next implements Operator; advances past the returned tuple.
func (s *SeqScanOp) Next() (*Tuple, error) {
	if err := s.fill(); err != nil {
		return nil, err
	}
	if s.peeked == nil {
		return nil, GoDBError{NoSuchElement, "sequential scan exhausted"}
	}
	t := s.peeked
	s.peeked = nil
	s.hasPeek = false
	if s.alias != "" {
		desc := t.Desc
		desc.SetTableAlias(s.alias)
		t.Desc = desc
	}
	return t, nil
}

// Rewind implements Operator by re-opening the underlying iterator against
// the same transaction the scan was last opened with.
func (s *SeqScanOp) Rewind() error {
	iter, err := s.file.Iterator(s.lastTID)
	if err != nil {
		return err
	}
	s.iter = iter
	s.hasPeek = false
	s.peeked = nil
	return nil
}

// Close implements Operator. SeqScanOp holds no resources beyond the
// buffer-pool pages it fetched through, which are reclaimed by eviction.
func (s *SeqScanOp) Close() error {
	s.iter = nil
	s.hasPeek = false
	s.peeked = nil
	return nil
}

var _ Operator = (*SeqScanOp)(nil)
