package dbcore

import (
	"math"

	lru "github.com/hashicorp/golang-lru"
)

// Stats is the narrow cost-estimation interface a query planner would
// consume from the core, without requiring a planner to exist in this
// package.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error)
}

// CostPerPage is the assumed cost, in arbitrary units, of reading one page
// from disk with no buffer-pool hit and no seeks.
const CostPerPage = 1000

// NumHistBins is the number of buckets each IntHistogram is built with.
const NumHistBins = 100

// TableStats holds per-table cardinality and per-column selectivity
// histograms, computed by two full scans under a dedicated transaction.
type TableStats struct {
	basePages int
	baseTups  int
	intHists  map[string]*IntHistogram
	strHists  map[string]*StringHistogram
	tupleDesc *TupleDesc
}

func tableMinMax(tid TransactionID, dbFile DBFile) ([]int64, []int64, error) {
	td := dbFile.Descriptor()
	mins := make([]int64, len(td.Fields))
	maxs := make([]int64, len(td.Fields))
	for i := range mins {
		mins[i] = math.MaxInt64
		maxs[i] = math.MinInt64
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for {
		tup, err := iter()
		if err != nil {
			return nil, nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := tup.Fields[i].(IntField).Value
			if v < mins[i] {
				mins[i] = v
			}
			if v > maxs[i] {
				maxs[i] = v
			}
		}
	}
	for i := range mins {
		if mins[i] > maxs[i] {
			mins[i] = 0
			maxs[i] = 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile twice under a dedicated read-only
// transaction: once for each integer column's min and max, then again to
// fill a histogram per column.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}

	td := dbFile.Descriptor()

	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		bp.TransactionComplete(tid, false)
		return nil, err
	}

	intHists := make(map[string]*IntHistogram)
	strHists := make(map[string]*StringHistogram)
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			intHists[f.Fname] = NewIntHistogram(NumHistBins, mins[i], maxs[i])
		case StringType:
			strHists[f.Fname] = NewStringHistogram()
		case UnknownType:
			bp.TransactionComplete(tid, false)
			return nil, GoDBError{DbException, "unexpected unknown field type"}
		}
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		bp.TransactionComplete(tid, false)
		return nil, err
	}

	baseTups := 0
	for {
		tup, err := iter()
		if err != nil {
			bp.TransactionComplete(tid, false)
			return nil, err
		}
		if tup == nil {
			break
		}
		for i, f := range td.Fields {
			switch f.Ftype {
			case IntType:
				intHists[f.Fname].AddValue(tup.Fields[i].(IntField).Value)
			case StringType:
				strHists[f.Fname].AddValue(tup.Fields[i].(StringField).Value)
			}
		}
		baseTups++
	}

	if err := bp.TransactionComplete(tid, true); err != nil {
		return nil, err
	}

	return &TableStats{
		basePages: dbFile.NumPages(),
		baseTups:  baseTups,
		intHists:  intHists,
		strHists:  strHists,
		tupleDesc: td,
	}, nil
}

// EstimateScanCost implements Stats.
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages) * CostPerPage
}

// EstimateCardinality implements Stats.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(float64(t.baseTups) * selectivity)
}

// EstimateSelectivity implements Stats.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value DBValue) (float64, error) {
	if h, ok := t.intHists[field]; ok {
		v, ok := value.(IntField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, "field " + field + " is int but value is not"}
		}
		return h.EstimateSelectivity(op, v.Value), nil
	}
	if h, ok := t.strHists[field]; ok {
		v, ok := value.(StringField)
		if !ok {
			return 1.0, GoDBError{TypeMismatchError, "field " + field + " is string but value is not"}
		}
		return h.EstimateSelectivity(op, v.Value), nil
	}
	log.WithField("field", field).Warn("no histogram for field, assuming selectivity 1.0")
	return 1.0, nil
}

// TableStatsCache caches computed TableStats per table, since a full scan
// to rebuild a histogram is comparatively expensive and tables are read for
// planning far more often than they are restructured. This is the one
// place this package uses an LRU policy; the buffer pool's own page cache
// deliberately does not (see evictLocked's doc comment and DESIGN.md).
type TableStatsCache struct {
	cache *lru.Cache
	bp    *BufferPool
}

// NewTableStatsCache returns a cache holding up to size tables' statistics.
func NewTableStatsCache(bp *BufferPool, size int) (*TableStatsCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &TableStatsCache{cache: c, bp: bp}, nil
}

// Get returns the cached TableStats for dbFile, computing and caching them
// on a miss.
func (c *TableStatsCache) Get(dbFile DBFile) (*TableStats, error) {
	if v, ok := c.cache.Get(dbFile.TableID()); ok {
		return v.(*TableStats), nil
	}
	stats, err := ComputeTableStats(c.bp, dbFile)
	if err != nil {
		return nil, err
	}
	c.cache.Add(dbFile.TableID(), stats)
	return stats, nil
}

// Invalidate drops any cached statistics for tableID, e.g. after a bulk load.
func (c *TableStatsCache) Invalidate(tableID string) {
	c.cache.Remove(tableID)
}
