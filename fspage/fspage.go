// Package fspage provides a concrete, mmap-backed PageManager: a single
// page store file plus the per-page lock table a real host database's
// buffer manager would own. It exists for this repo's tests,
// benchmarks, and the bm25ctl inspector, standing in for a host
// integration that is out of scope for the core.
package fspage

import (
	"sync"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/internal/pagestore"
)

// DefaultPageSize is the page size a freshly created store uses absent
// an explicit override.
const DefaultPageSize = 8192

// Manager is a PageManager backed by a single mmap'd page store file.
// Page reads/writes block on a per-page sync.RWMutex (the "any page
// read/write" suspension point); a second, separate lock
// namespace backs ConditionalLockPage, used only to guard at-most-one-
// concurrent-seal and so never contended by ordinary readers/writers.
type Manager struct {
	store     *pagestore.Store
	pageLocks sync.Map // bm25idx.BlockNumber -> *sync.RWMutex
	condLocks sync.Map // bm25idx.BlockNumber -> *sync.RWMutex
}

// Open creates or reopens a page store at path with the given fixed
// page size.
func Open(path string, pageSize uint32) (*Manager, error) {
	store, err := pagestore.Open(path, pageSize)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store}, nil
}

// Close unmaps and closes the backing store.
func (m *Manager) Close() error { return m.store.Close() }

func (m *Manager) lockFor(table *sync.Map, blkno bm25idx.BlockNumber) *sync.RWMutex {
	v, _ := table.LoadOrStore(blkno, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

// readGuard and writeGuard implement bm25idx.PageReadGuard and
// bm25idx.PageWriteGuard over a locked slice of the mmap'd store.
type readGuard struct {
	block bm25idx.BlockNumber
	data  []byte
	lock  *sync.RWMutex
}

func (g *readGuard) Block() bm25idx.BlockNumber { return g.block }
func (g *readGuard) Data() []byte               { return g.data }
func (g *readGuard) Release()                   { g.lock.RUnlock() }

type writeGuard struct {
	block bm25idx.BlockNumber
	data  []byte
	lock  *sync.RWMutex
}

func (g *writeGuard) Block() bm25idx.BlockNumber { return g.block }
func (g *writeGuard) Data() []byte               { return g.data }
func (g *writeGuard) Release()                   { g.lock.Unlock() }

// PageAlloc allocates a fresh page tagged flag. The file-backed store's
// only allocator draws from its free-space bitmap (see
// PageAllocWithFSM), so a page released through PageFree can be handed
// out again here too: the two allocation policies the PageManager
// contract distinguishes coincide in this implementation. The core
// itself never calls PageFree (deletes are logical, via the delete
// bitmap).
func (m *Manager) PageAlloc(flag bm25idx.PageFlag) (bm25idx.BlockNumber, bm25idx.PageWriteGuard, error) {
	return m.PageAllocWithFSM(flag)
}

// PageAllocWithFSM allocates a page tagged flag, reusing a freed page
// from the free-space map when available.
func (m *Manager) PageAllocWithFSM(flag bm25idx.PageFlag) (bm25idx.BlockNumber, bm25idx.PageWriteGuard, error) {
	block, data, err := m.store.Alloc()
	if err != nil {
		return 0, nil, bm25idx.WrapError(bm25idx.PageAllocFailure, "alloc page", err)
	}
	blkno := bm25idx.BlockNumber(block)
	lock := m.lockFor(&m.pageLocks, blkno)
	lock.Lock()
	return blkno, &writeGuard{block: blkno, data: data, lock: lock}, nil
}

// PageRead acquires a shared lock on blkno.
func (m *Manager) PageRead(blkno bm25idx.BlockNumber) (bm25idx.PageReadGuard, error) {
	lock := m.lockFor(&m.pageLocks, blkno)
	lock.RLock()
	data, err := m.store.Page(uint32(blkno))
	if err != nil {
		lock.RUnlock()
		return nil, err
	}
	return &readGuard{block: blkno, data: data, lock: lock}, nil
}

// PageWrite acquires an exclusive lock on blkno.
func (m *Manager) PageWrite(blkno bm25idx.BlockNumber) (bm25idx.PageWriteGuard, error) {
	lock := m.lockFor(&m.pageLocks, blkno)
	lock.Lock()
	data, err := m.store.Page(uint32(blkno))
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &writeGuard{block: blkno, data: data, lock: lock}, nil
}

// PageFree releases blkno back to the free-space map.
func (m *Manager) PageFree(blkno bm25idx.BlockNumber) error {
	m.store.Free(uint32(blkno))
	return nil
}

// ConditionalLockPage attempts to acquire mode on blkno without
// blocking, in a lock namespace separate from PageRead/PageWrite so
// ordinary page traffic never contends with it.
func (m *Manager) ConditionalLockPage(blkno bm25idx.BlockNumber, mode bm25idx.LockMode) (bool, error) {
	lock := m.lockFor(&m.condLocks, blkno)
	switch mode {
	case bm25idx.LockExclusive:
		return lock.TryLock(), nil
	case bm25idx.LockShared:
		return lock.TryRLock(), nil
	default:
		return false, bm25idx.NewError(bm25idx.InputInvalid, "unknown lock mode")
	}
}

// UnlockPage releases a lock acquired via ConditionalLockPage.
func (m *Manager) UnlockPage(blkno bm25idx.BlockNumber, mode bm25idx.LockMode) error {
	lock := m.lockFor(&m.condLocks, blkno)
	switch mode {
	case bm25idx.LockExclusive:
		lock.Unlock()
	case bm25idx.LockShared:
		lock.RUnlock()
	default:
		return bm25idx.NewError(bm25idx.InputInvalid, "unknown lock mode")
	}
	return nil
}

// PageSize returns the fixed page size in bytes.
func (m *Manager) PageSize() uint32 { return m.store.PageSize() }
