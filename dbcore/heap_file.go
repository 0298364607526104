package dbcore

// A HeapFile is an unordered collection of tuples persisted as a
// contiguous sequence of fixed-size pages in a single backing file.
// HeapFile is exported so callers can bulk-load tables with LoadFromCSV.

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pingcap/errors"
)

// HeapFile is a public class because external callers may wish to
// instantiate database tables using the method [LoadFromCSV].
type HeapFile struct {
	backingFile string
	tableID     string
	tupleDesc   *TupleDesc
	bufPool     *BufferPool
	mu          sync.Mutex
	pagesNum    int
}

// NewHeapFile constructs a HeapFile backed by fromFile, described by td,
// and served through bp. The backing file is not created here; if absent,
// it is created by the first page write.
func NewHeapFile(fromFile string, tableID string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	hf := &HeapFile{
		backingFile: fromFile,
		tableID:     tableID,
		tupleDesc:   td,
		bufPool:     bp,
	}
	hf.pagesNum = hf.NumPages()
	return hf, nil
}

// TableID implements DBFile.
func (f *HeapFile) TableID() string {
	return f.tableID
}

// BackingFile returns the path of the file this HeapFile is stored in.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages implements DBFile: fileLength / pageSize, integer division.
func (f *HeapFile) NumPages() int {
	fileInfo, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	return int(fileInfo.Size() / int64(PageSize()))
}

// LoadFromCSV bulk-loads rows from file into the heap file, one transaction
// per row. hasHeader skips the first line; sep is the field separator;
// skipLastField drops a trailing separator some TPC-style datasets emit.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		cnt++
		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return GoDBError{MalformedDataError, "descriptor was nil"}
		}
		if len(fields) != len(desc.Fields) {
			return GoDBError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) has %d fields, expected %d", cnt, line, len(fields), len(desc.Fields))}
		}
		if cnt == 1 && hasHeader {
			continue
		}
		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return GoDBError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: couldn't convert %q to int, line %d", field, cnt)}
				}
				newFields = append(newFields, IntField{int64(floatVal)})
			case StringType:
				if len(field) > StringLength {
					field = field[0:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := Tuple{Desc: *desc, Fields: newFields}
		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		if _, err := f.insertTuple(&newT, tid); err != nil {
			f.bufPool.TransactionComplete(tid, false)
			return err
		}
		f.bufPool.TransactionComplete(tid, true)
	}
	return scanner.Err()
}

// ReadPage implements DBFile. Fails with InvalidPage when pageNo is out of
// range: pageNo >= NumPages() is out of range, not just pageNo > NumPages().
// An I/O failure while opening, seeking or reading is logged and also
// reported as InvalidPage.
func (f *HeapFile) ReadPage(pageNo int) (Page, error) {
	if pageNo < 0 || pageNo >= f.NumPages() {
		return nil, GoDBError{InvalidPage, fmt.Sprintf("page %d out of range for %s", pageNo, f.tableID)}
	}

	ioFailed := func(err error, step string) (Page, error) {
		log.WithField("table", f.tableID).WithField("page", pageNo).WithError(err).Warn("heap file " + step + " failed")
		return nil, errors.Annotatef(GoDBError{InvalidPage, err.Error()}, "heap file %s: %s page %d", f.tableID, step, pageNo)
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return ioFailed(err, "open")
	}
	defer file.Close()

	offset := int64(pageNo) * int64(PageSize())
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return ioFailed(err, "seek")
	}

	data := make([]byte, PageSize())
	if _, err := io.ReadFull(file, data); err != nil {
		return ioFailed(err, "read")
	}

	hp := &heapPage{
		pid:  PageID{TableID: f.tableID, PageNumber: pageNo},
		desc: f.tupleDesc,
		file: f,
	}
	if err := hp.initFromBuffer(data); err != nil {
		return nil, errors.Annotatef(err, "heap file %s: decode page %d", f.tableID, pageNo)
	}
	return hp, nil
}

// insertTuple scans pages in order through the buffer pool for the first
// one with a free slot, appending a new page if none is found. Returns the
// single page it dirtied.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	if len(t.Fields) != len(f.tupleDesc.Fields) || !t.Desc.Equals(f.tupleDesc) {
		return nil, GoDBError{DbException, "tuple does not match heap file descriptor"}
	}

	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		page, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
		if err != nil {
			return nil, err
		}
		hp := page.(*heapPage)
		if int(hp.numUsedSlots) < int(hp.numSlots) {
			if _, err := hp.insertTuple(t); err != nil {
				return nil, err
			}
			hp.SetDirty(tid, true)
			return []Page{hp}, nil
		}
	}

	return f.createNewPage(t, tid)
}

// createNewPage appends a zero-initialized page to the backing file, then
// fetches it through the buffer pool (so cache and lock state stay
// authoritative) and inserts t into it.
func (f *HeapFile) createNewPage(t *Tuple, tid TransactionID) ([]Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pageNo := f.NumPages()
	empty, err := newHeapPage(f.tupleDesc, pageNo, f)
	if err != nil {
		return nil, err
	}
	buf, err := empty.toBuffer()
	if err != nil {
		return nil, err
	}
	if err := f.writePageBytes(pageNo, buf); err != nil {
		return nil, err
	}
	f.pagesNum = pageNo + 1

	page, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return nil, err
	}
	hp.SetDirty(tid, true)
	log.WithField("table", f.tableID).WithField("page", pageNo).Debug("allocated new heap page")
	return []Page{hp}, nil
}

// deleteTuple locates t's owning page via its record id, acquires it
// exclusively, and removes the tuple. Returns the single page it dirtied.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) ([]Page, error) {
	if t.Rid == nil {
		return nil, GoDBError{IllegalArgumentError, "tuple has no record id"}
	}

	page, err := f.bufPool.GetPage(f, t.Rid.PageNo, tid, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if err := hp.deleteTuple(t.Rid); err != nil {
		return nil, err
	}
	hp.SetDirty(tid, true)
	return []Page{hp}, nil
}

// FlushPage implements DBFile: writes p's byte image to its offset in the
// backing file and clears its dirty flag.
func (f *HeapFile) FlushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return GoDBError{DbException, "flushPage: not a heap page"}
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	if err := f.writePageBytes(hp.pid.PageNumber, buf); err != nil {
		return err
	}
	hp.SetDirty(TransactionID{}, false)
	return nil
}

func (f *HeapFile) writePageBytes(pageNo int, data []byte) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Annotatef(err, "heap file %s: open for write", f.tableID)
	}
	defer file.Close()

	if _, err := file.Seek(int64(pageNo)*int64(PageSize()), io.SeekStart); err != nil {
		return errors.Annotatef(err, "heap file %s: seek to page %d", f.tableID, pageNo)
	}
	if _, err := file.Write(data); err != nil {
		return errors.Annotatef(err, "heap file %s: write page %d", f.tableID, pageNo)
	}
	return nil
}

// Descriptor implements DBFile and Operator.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// Iterator returns a function that lazily walks every live tuple in the
// file in page, then slot, order, fetching each page through the buffer
// pool so that eviction and lock-mode changes stay visible.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	return f.iterator(context.Background(), tid)
}

// IteratorWithContext is Iterator, but each page fetch goes through
// BufferPool.GetPageWithContext: if ctx is cancelled while the scan is
// blocked waiting for a page's lock, the iterator returns promptly with a
// TransactionAborted error instead of blocking indefinitely.
func (f *HeapFile) IteratorWithContext(ctx context.Context, tid TransactionID) (func() (*Tuple, error), error) {
	return f.iterator(ctx, tid)
}

func (f *HeapFile) iterator(ctx context.Context, tid TransactionID) (func() (*Tuple, error), error) {
	pageNo := 0
	var pageIter func() (*Tuple, error)

	return func() (*Tuple, error) {
		for {
			if pageIter == nil {
				if pageNo >= f.NumPages() {
					return nil, nil
				}
				page, err := f.bufPool.GetPageWithContext(ctx, f, pageNo, tid, ReadPerm)
				if err != nil {
					return nil, err
				}
				pageIter = page.(*heapPage).tupleIter()
			}

			t, err := pageIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				pageIter = nil
				pageNo++
				continue
			}
			t.Desc = *f.tupleDesc
			return t, nil
		}
	}, nil
}
