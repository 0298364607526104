package dbcore

import "fmt"

// AggOp names a supported aggregate function.
type AggOp int

const (
	AggCount AggOp = iota
	AggSum
	AggAvg
	AggMax
	AggMin
)

func (op AggOp) String() string {
	switch op {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	}
	return "?"
}

// aggState accumulates one group's running aggregate value.
type aggState struct {
	op      AggOp
	count   int64
	sum     int64
	extreme DBValue
}

func (s *aggState) add(v DBValue) {
	s.count++
	switch s.op {
	case AggSum, AggAvg:
		s.sum += v.(IntField).Value
	case AggMax:
		if s.extreme == nil || v.EvalPred(s.extreme, OpGreaterThan) {
			s.extreme = v
		}
	case AggMin:
		if s.extreme == nil || v.EvalPred(s.extreme, OpLessThan) {
			s.extreme = v
		}
	}
}

func (s *aggState) finalize() DBValue {
	switch s.op {
	case AggCount:
		return IntField{s.count}
	case AggSum:
		return IntField{s.sum}
	case AggAvg:
		return IntField{s.sum / s.count}
	case AggMax, AggMin:
		return s.extreme
	}
	return nil
}

// Aggregator groups tuples by one field and aggregates another, field
// index based (no expression tree): MergeTupleIntoGroup feeds it one tuple
// at a time and Iterator yields (group, aggregate) or (aggregate) tuples.
// COUNT is the only supported operator over a string field; any other
// operator against StringType fails at construction with IllegalArgument.
type Aggregator struct {
	gbField   int // -1 for no grouping
	gbType    DBType
	aggField  int
	aggType   DBType
	op        AggOp
	alias     string
	groupless bool

	groups map[DBValue]*aggState
	order  []DBValue
	desc   *TupleDesc
}

// NewAggregator constructs an Aggregator. gbField < 0 means no grouping
// (a single running aggregate over every tuple).
func NewAggregator(gbField int, gbType DBType, aggField int, aggType DBType, op AggOp, alias string) (*Aggregator, error) {
	if aggType == StringType && op != AggCount {
		return nil, GoDBError{IllegalArgumentError, fmt.Sprintf("aggregate %s is not defined over string fields", op)}
	}

	a := &Aggregator{
		gbField:   gbField,
		gbType:    gbType,
		aggField:  aggField,
		aggType:   aggType,
		op:        op,
		alias:     alias,
		groupless: gbField < 0,
		groups:    make(map[DBValue]*aggState),
	}

	fields := []FieldType{}
	if !a.groupless {
		fields = append(fields, FieldType{Fname: "groupby", Ftype: gbType})
	}
	fields = append(fields, FieldType{Fname: alias, Ftype: IntType})
	a.desc = &TupleDesc{Fields: fields}
	return a, nil
}

// MergeTupleIntoGroup folds t into its group's running aggregate.
func (a *Aggregator) MergeTupleIntoGroup(t *Tuple) error {
	if a.aggField < 0 || a.aggField >= len(t.Fields) {
		return GoDBError{IllegalArgumentError, "aggregate field index out of range"}
	}

	var key DBValue
	if a.groupless {
		key = IntField{0}
	} else {
		if a.gbField < 0 || a.gbField >= len(t.Fields) {
			return GoDBError{IllegalArgumentError, "group-by field index out of range"}
		}
		key = t.Fields[a.gbField]
	}

	state, ok := a.groups[key]
	if !ok {
		state = &aggState{op: a.op}
		a.groups[key] = state
		a.order = append(a.order, key)
	}
	state.add(t.Fields[a.aggField])
	return nil
}

// Descriptor returns the TupleDesc of the tuples Iterator yields.
func (a *Aggregator) Descriptor() *TupleDesc {
	return a.desc
}

// Iterator returns a function yielding one tuple per group, in the order
// groups were first seen.
func (a *Aggregator) Iterator(TransactionID) (func() (*Tuple, error), error) {
	i := 0
	return func() (*Tuple, error) {
		if i >= len(a.order) {
			return nil, nil
		}
		key := a.order[i]
		i++
		state := a.groups[key]
		fields := []DBValue{}
		if !a.groupless {
			fields = append(fields, key)
		}
		fields = append(fields, state.finalize())
		return &Tuple{Desc: *a.desc, Fields: fields}, nil
	}, nil
}
