package dbcore

// BufferPool caches pages read from disk, up to a fixed capacity, and is
// the sole mechanism by which transactions are enforced: every page access
// goes through GetPage, which consults a per-page LockTable and a
// WaitsForGraph deadlock detector before granting the requested
// permission. The pool is a classic monitor: a single mutex plus a
// condition variable serialize every public operation, and any release or
// transaction completion broadcasts to every suspended waiter, which
// retests its own acquire condition on wakeup.

import (
	"context"
	"sync"

	"github.com/pingcap/errors"
)

// RWPerm is the permission requested when reading or locking a page.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

// BufferPool is the transaction coordinator and page cache.
type BufferPool struct {
	cfg Config

	mu   sync.Mutex
	cond *sync.Cond

	pages     map[PageID]Page
	pageOrder []PageID

	lockTable *LockTable
	waitsFor  *WaitsForGraph

	transactions map[TransactionID]struct{}
	cancelled    map[TransactionID]bool
}

// NewBufferPool constructs a BufferPool with the given page capacity.
func NewBufferPool(numPages int) (*BufferPool, error) {
	return NewBufferPoolWithConfig(Config{BufferPoolCapacity: numPages})
}

// NewBufferPoolWithConfig constructs a BufferPool from an explicit Config.
func NewBufferPoolWithConfig(cfg Config) (*BufferPool, error) {
	bp := &BufferPool{
		cfg:          cfg,
		pages:        make(map[PageID]Page),
		lockTable:    NewLockTable(),
		waitsFor:     NewWaitsForGraph(),
		transactions: make(map[TransactionID]struct{}),
		cancelled:    make(map[TransactionID]bool),
	}
	bp.cond = sync.NewCond(&bp.mu)
	return bp, nil
}

func (bp *BufferPool) capacity() int {
	return bp.cfg.capacity()
}

// BeginTransaction registers tid as active. Returns an error if tid is
// already running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if _, alive := bp.transactions[tid]; alive {
		return GoDBError{DbException, "transaction already running"}
	}
	bp.transactions[tid] = struct{}{}
	return nil
}

// GetPage retrieves pageNumber from file on behalf of tid with the
// requested permission, blocking until the lock is available, installing
// the page into the cache (evicting if necessary) on a cache miss.
func (bp *BufferPool) GetPage(file DBFile, pageNumber int, tid TransactionID, perm RWPerm) (Page, error) {
	pid := PageID{TableID: file.TableID(), PageNumber: pageNumber}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if _, alive := bp.transactions[tid]; !alive {
		return nil, GoDBError{DbException, "invalid or completed transaction"}
	}

	for {
		if bp.lockTable.Acquire(tid, pid, perm) {
			break
		}

		// Rebuild tid's outgoing edges from the page's current holders on
		// every failed attempt, since the holders may have changed while
		// tid was suspended.
		bp.waitsFor.RemoveWaiter(tid)
		for _, holder := range bp.lockTable.HoldersExcept(pid, tid) {
			bp.waitsFor.AddEdge(tid, holder)
		}

		if bp.waitsFor.HasCycleFrom(tid) {
			bp.waitsFor.RemoveWaiter(tid)
			log.WithField("tid", tid).WithField("page", pid).Debug("deadlock detected, aborting acquirer")
			bp.abortLocked(tid)
			return nil, GoDBError{TransactionAborted, "deadlock detected"}
		}

		log.WithField("tid", tid).WithField("page", pid).Debug("blocked acquiring page")
		bp.cond.Wait()

		if bp.cancelled[tid] {
			delete(bp.cancelled, tid)
			bp.waitsFor.RemoveWaiter(tid)
			bp.abortLocked(tid)
			return nil, GoDBError{TransactionAborted, "context cancelled while waiting for lock"}
		}

		if _, alive := bp.transactions[tid]; !alive {
			return nil, GoDBError{TransactionAborted, "transaction aborted while waiting for lock"}
		}
	}

	bp.waitsFor.RemoveWaiter(tid)

	if page, ok := bp.pages[pid]; ok {
		return page, nil
	}

	if len(bp.pages) >= bp.capacity() {
		if err := bp.evictLocked(); err != nil {
			bp.lockTable.Release(tid, pid)
			return nil, err
		}
	}

	page, err := file.ReadPage(pageNumber)
	if err != nil {
		bp.lockTable.Release(tid, pid)
		return nil, errors.Trace(err)
	}
	bp.installLocked(pid, page)
	return page, nil
}

// GetPageWithContext is GetPage with cancellation: if ctx is done while the
// caller is suspended waiting for the lock, the transaction is aborted and
// TransactionAborted is returned promptly instead of blocking indefinitely.
func (bp *BufferPool) GetPageWithContext(ctx context.Context, file DBFile, pageNumber int, tid TransactionID, perm RWPerm) (Page, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			bp.mu.Lock()
			bp.cancelled[tid] = true
			bp.cond.Broadcast()
			bp.mu.Unlock()
		case <-done:
		}
	}()
	return bp.GetPage(file, pageNumber, tid, perm)
}

func (bp *BufferPool) installLocked(pid PageID, page Page) {
	if _, exists := bp.pages[pid]; !exists {
		bp.pageOrder = append(bp.pageOrder, pid)
	}
	bp.pages[pid] = page
}

func (bp *BufferPool) removeFromOrderLocked(pid PageID) {
	for i, p := range bp.pageOrder {
		if p == pid {
			bp.pageOrder = append(bp.pageOrder[:i], bp.pageOrder[i+1:]...)
			return
		}
	}
}

// evictLocked picks the first clean, unlocked page in insertion order and
// drops it from the cache. A page held by any transaction in any mode is
// never evicted, even if clean, so that a transaction's most recent read
// of it stays visible.
func (bp *BufferPool) evictLocked() error {
	for _, pid := range bp.pageOrder {
		page := bp.pages[pid]
		if page.IsDirty() {
			continue
		}
		if bp.lockTable.IsLocked(pid) {
			continue
		}
		delete(bp.pages, pid)
		bp.removeFromOrderLocked(pid)
		log.WithField("page", pid).Debug("evicted page")
		return nil
	}
	return GoDBError{DbException, "no clean pages to evict"}
}

// ReleasePage releases tid's lock on pid unconditionally, trusting the
// caller to be following two-phase locking correctly. Risky outside 2PL.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.lockTable.Release(tid, pid)
	bp.waitsFor.RemoveTransaction(tid)
	bp.cond.Broadcast()
}

// InsertTuple inserts t into file on tid's behalf, marking the page(s) it
// lands on dirty under tid.
func (bp *BufferPool) InsertTuple(tid TransactionID, file *HeapFile, t *Tuple) error {
	dirtied, err := file.insertTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, dirtied)
	return nil
}

// DeleteTuple removes t from its owning file on tid's behalf, marking the
// page it came from dirty under tid.
func (bp *BufferPool) DeleteTuple(tid TransactionID, file *HeapFile, t *Tuple) error {
	dirtied, err := file.deleteTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, dirtied)
	return nil
}

func (bp *BufferPool) markDirty(tid TransactionID, pages []Page) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, p := range pages {
		p.SetDirty(tid, true)
		bp.installLocked(p.PageID(), p)
	}
}

// TransactionComplete ends tid. On commit it force-flushes every dirty page
// tid holds; on abort it discards tid's dirty pages and rereads them from
// disk so the cache reflects the pre-transaction image. In both cases every
// lock tid holds is released, every waits-for edge mentioning tid is
// removed, and all waiters are woken.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if commit {
		return bp.commitLocked(tid)
	}
	bp.abortLocked(tid)
	return nil
}

func (bp *BufferPool) commitLocked(tid TransactionID) error {
	pages := bp.lockTable.TransactionPages(tid)
	for _, pid := range pages {
		page, ok := bp.pages[pid]
		if !ok || !page.IsDirty() {
			continue
		}
		if err := page.File().FlushPage(page); err != nil {
			return errors.Annotatef(err, "commit %s: flush page %s", tid, pid)
		}
	}
	log.WithField("tid", tid).Debug("committed transaction")
	bp.finishLocked(tid)
	return nil
}

func (bp *BufferPool) abortLocked(tid TransactionID) {
	pages := bp.lockTable.TransactionPages(tid)
	for _, pid := range pages {
		page, ok := bp.pages[pid]
		if !ok || !page.IsDirty() {
			continue
		}
		fresh, err := page.File().ReadPage(pid.PageNumber)
		if err != nil {
			delete(bp.pages, pid)
			bp.removeFromOrderLocked(pid)
			continue
		}
		bp.pages[pid] = fresh
	}
	log.WithField("tid", tid).Debug("aborted transaction")
	bp.finishLocked(tid)
}

func (bp *BufferPool) finishLocked(tid TransactionID) {
	bp.lockTable.ClearTransaction(tid)
	bp.waitsFor.RemoveTransaction(tid)
	delete(bp.transactions, tid)
	bp.cond.Broadcast()
}

// FlushPage writes p through its owning file and clears its dirty flag.
func (bp *BufferPool) FlushPage(p Page) error {
	return p.File().FlushPage(p)
}

// FlushAllPages flushes every dirty page in the cache. Intended for tests
// and shutdown; not required to be transaction-safe.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, page := range bp.pages {
		if !page.IsDirty() {
			continue
		}
		if err := page.File().FlushPage(page); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without flushing it, e.g. after a
// rollback has already reread the page.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.pages, pid)
	bp.removeFromOrderLocked(pid)
}
