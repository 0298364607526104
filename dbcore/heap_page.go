package dbcore

// heapPage implements the Page interface for pages of HeapFiles.
//
// All tuples on a page are fixed length, so given a TupleDesc it is
// possible to compute how many tuple "slots" fit on a page. Every page is
// PageSize bytes and begins with a header of two little-endian int32s: the
// number of slots, then the number of used slots. Each tuple occupies the
// same number of bytes, computed from its TupleDesc.
//
// In memory, a deletion leaves a hole rather than compacting the page.
// toBuffer writes only the live tuples, back to back, so a page that is
// written and read again has its tuples renumbered into slots
// 0..numUsedSlots-1. A page locked by a transaction is never evicted, so
// slot numbers do not change while a transaction holds the page.

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type heapPage struct {
	dirty        bool
	dirtiedBy    TransactionID
	pid          PageID
	numSlots     int32
	numUsedSlots int32
	desc         *TupleDesc
	file         *HeapFile
	tuples       []*Tuple
}

func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	perTupleSize := int32(desc.width())
	if perTupleSize <= 0 {
		return nil, GoDBError{DbException, "heap page: tuple descriptor has zero width"}
	}
	page := &heapPage{
		pid:          PageID{TableID: f.TableID(), PageNumber: pageNo},
		numSlots:     int32(PageSize()-8) / perTupleSize,
		numUsedSlots: 0,
		desc:         desc,
		file:         f,
	}
	page.tuples = make([]*Tuple, page.numSlots)
	return page, nil
}

func (h *heapPage) getNumSlots() int {
	return int(h.numSlots)
}

// insertTuple places t into the first free slot, sets t.Rid, and returns it.
func (h *heapPage) insertTuple(t *Tuple) (*RecordID, error) {
	for slot, tup := range h.tuples {
		if tup != nil {
			continue
		}
		h.numUsedSlots++
		rid := &RecordID{PageNo: h.pid.PageNumber, SlotNo: slot}
		h.tuples[slot] = &Tuple{
			Desc:   *h.desc,
			Fields: t.Fields,
			Rid:    rid,
		}
		t.Rid = rid
		h.dirty = true
		return rid, nil
	}
	return nil, GoDBError{DbException, "no available slots for tuple insertion"}
}

// deleteTuple clears the slot named by rid.
func (h *heapPage) deleteTuple(rid *RecordID) error {
	if rid == nil {
		return GoDBError{IllegalArgumentError, "nil record id"}
	}
	if rid.SlotNo < 0 || rid.SlotNo >= len(h.tuples) || h.tuples[rid.SlotNo] == nil {
		return GoDBError{DbException, "invalid slot or tuple does not exist"}
	}
	h.tuples[rid.SlotNo] = nil
	h.numUsedSlots--
	h.dirty = true
	return nil
}

// PageID implements Page.
func (h *heapPage) PageID() PageID {
	return h.pid
}

// IsDirty implements Page.
func (h *heapPage) IsDirty() bool {
	return h.dirty
}

// SetDirty implements Page.
func (h *heapPage) SetDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtiedBy = tid
	} else {
		h.dirtiedBy = TransactionID{}
	}
}

// DirtiedBy implements Page.
func (h *heapPage) DirtiedBy() (TransactionID, bool) {
	if !h.dirty {
		return TransactionID{}, false
	}
	return h.dirtiedBy, true
}

// File implements Page.
func (h *heapPage) File() DBFile {
	return h.file
}

// toBuffer serializes the page header followed by its tuples, zero-padded
// to PageSize, implementing Page.
func (h *heapPage) toBuffer() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, h.numSlots); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.numUsedSlots); err != nil {
		return nil, err
	}
	for _, tuple := range h.tuples {
		if tuple == nil {
			continue
		}
		if err := tuple.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if buf.Len() < PageSize() {
		buf.Write(make([]byte, PageSize()-buf.Len()))
	}
	return buf.Bytes(), nil
}

// initFromBuffer populates h's slots from a raw PageSize-byte page image.
func (h *heapPage) initFromBuffer(data []byte) error {
	buf := bytes.NewBuffer(data)
	if err := binary.Read(buf, binary.LittleEndian, &h.numSlots); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &h.numUsedSlots); err != nil {
		return err
	}
	h.tuples = make([]*Tuple, h.numSlots)
	for i := 0; i < int(h.numUsedSlots); i++ {
		tuple, err := readTupleFrom(buf, h.desc)
		if err != nil {
			return fmt.Errorf("heap page %s: reading slot %d: %w", h.pid, i, err)
		}
		tuple.Rid = &RecordID{PageNo: h.pid.PageNumber, SlotNo: i}
		tuple.Desc = *h.desc
		h.tuples[i] = tuple
	}
	return nil
}

// tupleIter returns a closure yielding the page's live tuples in slot
// order, then (nil, nil).
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < len(p.tuples) {
			t := p.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
