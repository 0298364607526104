package dbcore

import (
	boom "github.com/tylertreat/BoomFilters"
)

// IntHistogram is a fixed-bucket equi-width histogram over [min, max] used
// to estimate predicate selectivity for an integer column without keeping
// every value seen.
type IntHistogram struct {
	buckets     []int64
	min, max    int64
	bucketWidth int64
	ntups       int64
}

// NewIntHistogram constructs an IntHistogram with numBuckets buckets
// covering [min, max] inclusive.
func NewIntHistogram(numBuckets int, min, max int64) *IntHistogram {
	if numBuckets < 1 {
		numBuckets = 1
	}
	width := (max - min + 1) / int64(numBuckets)
	if width < 1 {
		width = 1
	}
	return &IntHistogram{
		buckets:     make([]int64, numBuckets),
		min:         min,
		max:         max,
		bucketWidth: width,
	}
}

func (h *IntHistogram) bucketIndex(v int64) int {
	idx := int((v - h.min) / h.bucketWidth)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(h.buckets) {
		idx = len(h.buckets) - 1
	}
	return idx
}

func (h *IntHistogram) bucketRight(idx int) int64 {
	right := h.min + int64(idx+1)*h.bucketWidth - 1
	if right > h.max {
		right = h.max
	}
	return right
}

// AddValue records one occurrence of v.
func (h *IntHistogram) AddValue(v int64) {
	h.buckets[h.bucketIndex(v)]++
	h.ntups++
}

func (h *IntHistogram) equalsSelectivity(v int64) float64 {
	if v < h.min || v > h.max || h.ntups == 0 {
		return 0
	}
	b := h.bucketIndex(v)
	return (float64(h.buckets[b]) / float64(h.bucketWidth)) / float64(h.ntups)
}

func (h *IntHistogram) greaterThanSelectivity(v int64) float64 {
	if h.ntups == 0 {
		return 0
	}
	if v < h.min {
		return 1
	}
	if v >= h.max {
		return 0
	}
	b := h.bucketIndex(v)
	right := h.bucketRight(b)
	bFrac := float64(h.buckets[b]) / float64(h.ntups)
	partial := (float64(right-v) / float64(h.bucketWidth)) * bFrac

	var above int64
	for i := b + 1; i < len(h.buckets); i++ {
		above += h.buckets[i]
	}
	return partial + float64(above)/float64(h.ntups)
}

// EstimateSelectivity returns the estimated fraction of rows satisfying
// "column op v", clamped to [0,1].
func (h *IntHistogram) EstimateSelectivity(op BoolOp, v int64) float64 {
	var sel float64
	switch op {
	case OpEquals:
		sel = h.equalsSelectivity(v)
	case OpNotEquals:
		sel = 1 - h.equalsSelectivity(v)
	case OpGreaterThan:
		sel = h.greaterThanSelectivity(v)
	case OpGreaterThanOrEqual:
		sel = h.greaterThanSelectivity(v) + h.equalsSelectivity(v)
	case OpLessThan:
		sel = 1 - h.greaterThanSelectivity(v) - h.equalsSelectivity(v)
	case OpLessThanOrEqual:
		sel = 1 - h.greaterThanSelectivity(v)
	}
	if sel < 0 {
		sel = 0
	}
	if sel > 1 {
		sel = 1
	}
	return sel
}

// StringHistogram estimates cardinality for an unbounded, unordered string
// domain via a Count-Min Sketch rather than a bucketed histogram, since
// strings have no natural ordering to bucket over.
type StringHistogram struct {
	cms    *boom.CountMinSketch
	ntups  int64
	distin map[string]struct{}
}

// NewStringHistogram constructs a StringHistogram with a sketch sized for
// general workloads (epsilon=0.001, delta=0.99).
func NewStringHistogram() *StringHistogram {
	return &StringHistogram{
		cms:    boom.NewCountMinSketch(0.001, 0.99),
		distin: make(map[string]struct{}),
	}
}

// AddValue records one occurrence of s.
func (h *StringHistogram) AddValue(s string) {
	h.cms.Add([]byte(s))
	h.ntups++
	h.distin[s] = struct{}{}
}

// EstimateSelectivity returns the estimated fraction of rows satisfying
// "column op s". Only EQUALS and NOT_EQUALS are meaningful for an
// unordered domain; ordering predicates fall back to a uniform estimate
// over the distinct values observed.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	if h.ntups == 0 {
		return 0
	}
	switch op {
	case OpEquals:
		count := h.cms.Count([]byte(s))
		sel := float64(count) / float64(h.ntups)
		if sel > 1 {
			sel = 1
		}
		return sel
	case OpNotEquals:
		return 1 - h.EstimateSelectivity(OpEquals, s)
	default:
		if len(h.distin) == 0 {
			return 0
		}
		return 1.0 / float64(len(h.distin))
	}
}
