package dbcore

import "testing"

func makeStatsTestHeapFile(t *testing.T) (*BufferPool, *HeapFile) {
	t.Helper()
	path := t.TempDir() + "/stats.dat"
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	bp, err := NewBufferPool(25)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	hf, err := NewHeapFile(path, "stats", td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	names := []string{"ann", "bob", "ann", "carl", "ann", "dot", "bob", "eve", "ann", "bob"}
	for i, name := range names {
		tup := &Tuple{Desc: *td, Fields: []DBValue{IntField{int64(i)}, StringField{name}}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}
	return bp, hf
}

func TestComputeTableStatsBasics(t *testing.T) {
	bp, hf := makeStatsTestHeapFile(t)

	stats, err := ComputeTableStats(bp, hf)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}

	if stats.baseTups != 10 {
		t.Errorf("expected 10 base tuples, got %d", stats.baseTups)
	}
	if stats.basePages != hf.NumPages() {
		t.Errorf("expected basePages to match NumPages, got %d vs %d", stats.basePages, hf.NumPages())
	}
	if got, want := stats.EstimateScanCost(), float64(hf.NumPages())*CostPerPage; got != want {
		t.Errorf("EstimateScanCost: got %.1f, want %.1f", got, want)
	}
	if got := stats.EstimateCardinality(0.5); got != 5 {
		t.Errorf("EstimateCardinality(0.5): got %d, want 5", got)
	}
}

func TestTableStatsEstimateSelectivityOnKnownFields(t *testing.T) {
	bp, hf := makeStatsTestHeapFile(t)
	stats, err := ComputeTableStats(bp, hf)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}

	sel, err := stats.EstimateSelectivity("id", OpEquals, IntField{5})
	if err != nil {
		t.Fatalf("EstimateSelectivity(id): %v", err)
	}
	if sel < 0 || sel > 1 {
		t.Errorf("expected id selectivity in [0,1], got %.4f", sel)
	}

	sel, err = stats.EstimateSelectivity("name", OpEquals, StringField{"ann"})
	if err != nil {
		t.Fatalf("EstimateSelectivity(name): %v", err)
	}
	if sel <= 0 {
		t.Errorf("expected a positive selectivity for the most frequent name, got %.4f", sel)
	}
}

func TestTableStatsEstimateSelectivityUnknownFieldDefaultsToOne(t *testing.T) {
	bp, hf := makeStatsTestHeapFile(t)
	stats, err := ComputeTableStats(bp, hf)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}

	sel, err := stats.EstimateSelectivity("nonexistent", OpEquals, IntField{1})
	if err != nil {
		t.Fatalf("EstimateSelectivity: %v", err)
	}
	if sel != 1.0 {
		t.Errorf("expected selectivity 1.0 for an unknown field, got %.4f", sel)
	}
}

func TestTableStatsEstimateSelectivityTypeMismatch(t *testing.T) {
	bp, hf := makeStatsTestHeapFile(t)
	stats, err := ComputeTableStats(bp, hf)
	if err != nil {
		t.Fatalf("ComputeTableStats: %v", err)
	}

	if _, err := stats.EstimateSelectivity("id", OpEquals, StringField{"oops"}); err == nil {
		t.Fatalf("expected a type mismatch passing a string value for an int column")
	} else if code, ok := CodeOf(err); !ok || code != TypeMismatchError {
		t.Errorf("expected TypeMismatchError, got %v", err)
	}
}

func TestTableStatsCacheServesCachedPointerUntilInvalidated(t *testing.T) {
	bp, hf := makeStatsTestHeapFile(t)
	cache, err := NewTableStatsCache(bp, 4)
	if err != nil {
		t.Fatalf("NewTableStatsCache: %v", err)
	}

	first, err := cache.Get(hf)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := cache.Get(hf)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Errorf("expected a cached Get to return the same *TableStats instance")
	}

	cache.Invalidate(hf.TableID())
	third, err := cache.Get(hf)
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if third == first {
		t.Errorf("expected Get after Invalidate to recompute a fresh *TableStats instance")
	}
}
