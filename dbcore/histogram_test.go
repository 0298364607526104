package dbcore

import "testing"

func buildIntHistogram() *IntHistogram {
	h := NewIntHistogram(10, 0, 99)
	for i := int64(0); i < 100; i++ {
		h.AddValue(i)
	}
	return h
}

func TestIntHistogramEqualsAndNotEqualsPartitionToOne(t *testing.T) {
	h := buildIntHistogram()
	for _, v := range []int64{0, 17, 50, 99} {
		eq := h.EstimateSelectivity(OpEquals, v)
		neq := h.EstimateSelectivity(OpNotEquals, v)
		if sum := eq + neq; sum < 0.999 || sum > 1.001 {
			t.Errorf("v=%d: EQUALS(%.4f) + NOT_EQUALS(%.4f) = %.4f, want ~1", v, eq, neq, sum)
		}
	}
}

func TestIntHistogramLessEqualGreaterPartitionToOne(t *testing.T) {
	h := buildIntHistogram()
	for _, v := range []int64{0, 17, 50, 99} {
		lt := h.EstimateSelectivity(OpLessThan, v)
		eq := h.EstimateSelectivity(OpEquals, v)
		gt := h.EstimateSelectivity(OpGreaterThan, v)
		if sum := lt + eq + gt; sum < 0.999 || sum > 1.001 {
			t.Errorf("v=%d: LESS_THAN(%.4f) + EQUALS(%.4f) + GREATER_THAN(%.4f) = %.4f, want ~1", v, lt, eq, gt, sum)
		}
	}
}

func TestIntHistogramSelectivityStaysWithinUnitRange(t *testing.T) {
	h := buildIntHistogram()
	ops := []BoolOp{OpEquals, OpNotEquals, OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual}
	for _, v := range []int64{-50, 0, 42, 99, 500} {
		for _, op := range ops {
			sel := h.EstimateSelectivity(op, v)
			if sel < 0 || sel > 1 {
				t.Errorf("v=%d op=%s: selectivity %.4f out of [0,1]", v, op, sel)
			}
		}
	}
}

func TestIntHistogramOutOfRangeValues(t *testing.T) {
	h := buildIntHistogram()
	if sel := h.EstimateSelectivity(OpGreaterThan, -1); sel != 1 {
		t.Errorf("expected GREATER_THAN below the minimum to select everything, got %.4f", sel)
	}
	if sel := h.EstimateSelectivity(OpGreaterThan, 99); sel != 0 {
		t.Errorf("expected GREATER_THAN at the maximum to select nothing, got %.4f", sel)
	}
}

func TestStringHistogramEqualsAndNotEqualsPartitionToOne(t *testing.T) {
	h := NewStringHistogram()
	values := []string{"alice", "bob", "alice", "carol", "alice", "bob"}
	for _, v := range values {
		h.AddValue(v)
	}

	for _, v := range []string{"alice", "bob", "carol", "dave"} {
		eq := h.EstimateSelectivity(OpEquals, v)
		neq := h.EstimateSelectivity(OpNotEquals, v)
		if sum := eq + neq; sum < 0.999 || sum > 1.001 {
			t.Errorf("v=%q: EQUALS(%.4f) + NOT_EQUALS(%.4f) = %.4f, want ~1", v, eq, neq, sum)
		}
	}

	if sel := h.EstimateSelectivity(OpEquals, "alice"); sel < 0.4 {
		t.Errorf("expected alice, the most frequent value, to have a non-trivial selectivity, got %.4f", sel)
	}
}

func TestStringHistogramEmptyIsZero(t *testing.T) {
	h := NewStringHistogram()
	if sel := h.EstimateSelectivity(OpEquals, "anything"); sel != 0 {
		t.Errorf("expected selectivity 0 over an empty histogram, got %.4f", sel)
	}
}
