package bm25idx

// LockMode is the granularity of a page lock request.
type LockMode int

const (
	LockShared LockMode = iota + 1
	LockExclusive
)

// PageReadGuard is a held shared lock on a page, exposing its bytes for
// reading. Callers must call Release when done.
type PageReadGuard interface {
	Block() BlockNumber
	Data() []byte
	Release()
}

// PageWriteGuard is a held exclusive lock on a page, exposing its bytes
// for reading and writing. Callers must call Release when done; Release
// is where a real host would mark the page dirty for WAL/checkpoint
// purposes, out of scope for the core.
type PageWriteGuard interface {
	Block() BlockNumber
	Data() []byte
	Release()
}

// PageManager is the external collaborator contract standing in for the
// host database's buffer manager. The core never allocates memory pages
// itself; every growing structure in this repo (virtual page streams,
// term-info arrays, skip lists, block data, field-norm/payload/
// term-stat/delete-bitmap stores) is built on top of this interface.
//
// Suspension points are exactly: PageRead, PageWrite,
// PageAlloc/PageAllocWithFSM, and ConditionalLockPage.
type PageManager interface {
	// PageAlloc allocates a fresh page tagged with flag, without reusing
	// previously freed pages.
	PageAlloc(flag PageFlag) (BlockNumber, PageWriteGuard, error)

	// PageAllocWithFSM allocates a page tagged with flag, reusing a freed
	// page from the free-space map when available.
	PageAllocWithFSM(flag PageFlag) (BlockNumber, PageWriteGuard, error)

	// PageRead acquires a shared lock on blkno.
	PageRead(blkno BlockNumber) (PageReadGuard, error)

	// PageWrite acquires an exclusive lock on blkno.
	PageWrite(blkno BlockNumber) (PageWriteGuard, error)

	// PageFree releases blkno back to the free-space map.
	PageFree(blkno BlockNumber) error

	// ConditionalLockPage attempts to acquire mode on blkno without
	// blocking; ok is false if another holder already has it. Used only
	// to guard at-most-one-concurrent-seal.
	ConditionalLockPage(blkno BlockNumber, mode LockMode) (bool, error)

	// UnlockPage releases a lock acquired via ConditionalLockPage.
	UnlockPage(blkno BlockNumber, mode LockMode) error

	// PageSize returns the fixed page size in bytes.
	PageSize() uint32
}
