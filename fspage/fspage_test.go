package fspage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/vela-storage/bm25idx"
)

func open(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.dat")
	m, err := Open(path, DefaultPageSize)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestPageAllocWriteRead(t *testing.T) {
	m := open(t)

	blkno, guard, err := m.PageAlloc(bm25idx.PageFlagMeta)
	if err != nil {
		t.Fatalf("PageAlloc() error = %v", err)
	}
	copy(guard.Data(), []byte("hello"))
	guard.Release()

	rg, err := m.PageRead(blkno)
	if err != nil {
		t.Fatalf("PageRead() error = %v", err)
	}
	defer rg.Release()
	if !bytes.HasPrefix(rg.Data(), []byte("hello")) {
		t.Errorf("read back %q, want prefix %q", rg.Data()[:5], "hello")
	}
	if rg.Block() != blkno {
		t.Errorf("Block() = %d, want %d", rg.Block(), blkno)
	}
}

func TestPageAllocDistinctBlocks(t *testing.T) {
	m := open(t)
	seen := map[bm25idx.BlockNumber]bool{}
	for i := 0; i < 50; i++ {
		blkno, guard, err := m.PageAlloc(bm25idx.PageFlagGrowing)
		if err != nil {
			t.Fatalf("PageAlloc() error = %v", err)
		}
		guard.Release()
		if seen[blkno] {
			t.Fatalf("PageAlloc() returned duplicate block %d", blkno)
		}
		seen[blkno] = true
	}
}

func TestPageAllocZeroesFreedPage(t *testing.T) {
	m := open(t)

	blkno, guard, err := m.PageAllocWithFSM(bm25idx.PageFlagGrowing)
	if err != nil {
		t.Fatalf("PageAllocWithFSM() error = %v", err)
	}
	copy(guard.Data(), []byte("stale"))
	guard.Release()

	if err := m.PageFree(blkno); err != nil {
		t.Fatalf("PageFree() error = %v", err)
	}

	var reused bm25idx.BlockNumber = bm25idx.InvalidBlockNumber
	for i := 0; i < 10; i++ {
		b, g, err := m.PageAllocWithFSM(bm25idx.PageFlagGrowing)
		if err != nil {
			t.Fatalf("PageAllocWithFSM() error = %v", err)
		}
		if b == blkno {
			reused = b
			if g.Data()[0] != 0 {
				t.Error("reused page was not zeroed")
			}
			g.Release()
			break
		}
		g.Release()
	}
	if reused == bm25idx.InvalidBlockNumber {
		t.Skip("free-space map did not reuse the freed block within 10 allocations")
	}
}

func TestConditionalLockPageExclusiveExcludesSecondHolder(t *testing.T) {
	m := open(t)
	blkno, guard, err := m.PageAlloc(bm25idx.PageFlagMeta)
	if err != nil {
		t.Fatalf("PageAlloc() error = %v", err)
	}
	guard.Release()

	ok1, err := m.ConditionalLockPage(blkno, bm25idx.LockExclusive)
	if err != nil || !ok1 {
		t.Fatalf("first ConditionalLockPage() = (%v, %v), want (true, nil)", ok1, err)
	}
	ok2, err := m.ConditionalLockPage(blkno, bm25idx.LockExclusive)
	if err != nil {
		t.Fatalf("second ConditionalLockPage() error = %v", err)
	}
	if ok2 {
		t.Error("second ConditionalLockPage() = true, want false while first holder is active")
	}

	if err := m.UnlockPage(blkno, bm25idx.LockExclusive); err != nil {
		t.Fatalf("UnlockPage() error = %v", err)
	}
	ok3, err := m.ConditionalLockPage(blkno, bm25idx.LockExclusive)
	if err != nil || !ok3 {
		t.Fatalf("ConditionalLockPage() after Unlock = (%v, %v), want (true, nil)", ok3, err)
	}
	m.UnlockPage(blkno, bm25idx.LockExclusive)
}

func TestPageSize(t *testing.T) {
	m := open(t)
	if got := m.PageSize(); got != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", got, DefaultPageSize)
	}
}
