package bm25idx

import (
	"sync"
	"testing"
)

// memPageManager is a minimal in-memory PageManager used only to exercise
// package-internal types (termScorer, LoserTree) that an external test
// package cannot reach, without introducing a dependency on fspage (which
// itself imports this package).
type memPageManager struct {
	mu       sync.Mutex
	pages    [][]byte
	pageSize uint32
	locks    map[BlockNumber]*sync.RWMutex
	cond     map[BlockNumber]*sync.RWMutex
}

func newMemPageManager(pageSize uint32) *memPageManager {
	return &memPageManager{
		pageSize: pageSize,
		locks:    make(map[BlockNumber]*sync.RWMutex),
		cond:     make(map[BlockNumber]*sync.RWMutex),
	}
}

func (m *memPageManager) lockFor(table map[BlockNumber]*sync.RWMutex, b BlockNumber) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := table[b]
	if !ok {
		l = &sync.RWMutex{}
		table[b] = l
	}
	return l
}

type memReadGuard struct {
	block BlockNumber
	data  []byte
	lock  *sync.RWMutex
}

func (g *memReadGuard) Block() BlockNumber { return g.block }
func (g *memReadGuard) Data() []byte       { return g.data }
func (g *memReadGuard) Release()           { g.lock.RUnlock() }

type memWriteGuard struct {
	block BlockNumber
	data  []byte
	lock  *sync.RWMutex
}

func (g *memWriteGuard) Block() BlockNumber { return g.block }
func (g *memWriteGuard) Data() []byte       { return g.data }
func (g *memWriteGuard) Release()           { g.lock.Unlock() }

func (m *memPageManager) PageAlloc(flag PageFlag) (BlockNumber, PageWriteGuard, error) {
	return m.PageAllocWithFSM(flag)
}

func (m *memPageManager) PageAllocWithFSM(flag PageFlag) (BlockNumber, PageWriteGuard, error) {
	m.mu.Lock()
	blkno := BlockNumber(len(m.pages))
	m.pages = append(m.pages, make([]byte, m.pageSize))
	m.mu.Unlock()

	lock := m.lockFor(m.locks, blkno)
	lock.Lock()
	return blkno, &memWriteGuard{block: blkno, data: m.pages[blkno], lock: lock}, nil
}

func (m *memPageManager) PageRead(blkno BlockNumber) (PageReadGuard, error) {
	lock := m.lockFor(m.locks, blkno)
	lock.RLock()
	m.mu.Lock()
	data := m.pages[blkno]
	m.mu.Unlock()
	return &memReadGuard{block: blkno, data: data, lock: lock}, nil
}

func (m *memPageManager) PageWrite(blkno BlockNumber) (PageWriteGuard, error) {
	lock := m.lockFor(m.locks, blkno)
	lock.Lock()
	m.mu.Lock()
	data := m.pages[blkno]
	m.mu.Unlock()
	return &memWriteGuard{block: blkno, data: data, lock: lock}, nil
}

func (m *memPageManager) PageFree(blkno BlockNumber) error { return nil }

func (m *memPageManager) ConditionalLockPage(blkno BlockNumber, mode LockMode) (bool, error) {
	lock := m.lockFor(m.cond, blkno)
	switch mode {
	case LockExclusive:
		return lock.TryLock(), nil
	case LockShared:
		return lock.TryRLock(), nil
	}
	return false, NewError(InputInvalid, "unknown lock mode")
}

func (m *memPageManager) UnlockPage(blkno BlockNumber, mode LockMode) error {
	lock := m.lockFor(m.cond, blkno)
	switch mode {
	case LockExclusive:
		lock.Unlock()
	case LockShared:
		lock.RUnlock()
	}
	return nil
}

func (m *memPageManager) PageSize() uint32 { return m.pageSize }

// buildSealedTerm seals a single term's postings (already sorted by
// doc-id) directly, bypassing Index/GrowingSegmentInsert, to exercise the
// block-data/skip-info/term-scorer path with a precisely controlled
// posting list.
func buildSealedTerm(t *testing.T, pm PageManager, fieldNorm *FieldNormStore, postings []termPosting, weight Bm25Weight) PostingTermInfo {
	t.Helper()
	info, err := buildTermChain(pm, fieldNorm, postings, weight)
	if err != nil {
		t.Fatalf("buildTermChain() error = %v", err)
	}
	return info
}

func populateFieldNorms(t *testing.T, fieldNorm *FieldNormStore, n int, length uint32) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := fieldNorm.Append(DocID(i), length); err != nil {
			t.Fatalf("fieldNorm.Append(%d) error = %v", i, err)
		}
	}
}

func TestTermScorerAndBlockMaxWANDSingleTerm(t *testing.T) {
	pm := newMemPageManager(4096)
	fieldNorm, err := CreateFieldNormStore(pm)
	if err != nil {
		t.Fatalf("CreateFieldNormStore() error = %v", err)
	}
	const numDocs = 300
	populateFieldNorms(t, fieldNorm, numDocs, 50)

	var postings []termPosting
	for i := 0; i < numDocs; i++ {
		postings = append(postings, termPosting{Doc: DocID(i), Freq: uint32(1 + i%5)})
	}
	weight := NewBm25Weight(1, numDocs, numDocs, 50, DefaultK1, DefaultB)
	info := buildSealedTerm(t, pm, fieldNorm, postings, weight)

	scorer, err := newTermScorer(pm, info, weight)
	if err != nil {
		t.Fatalf("newTermScorer() error = %v", err)
	}
	results, err := BlockMaxWAND(fieldNorm, []*termScorer{scorer}, 5)
	if err != nil {
		t.Fatalf("BlockMaxWAND() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending by score at index %d: %v", i, results)
		}
	}
	// The doc with the highest term frequency (5, every 5th doc) should
	// dominate the top-k.
	for _, r := range results {
		if (int(r.Doc)+1)%5 != 0 {
			t.Errorf("expected only tf=5 docs (every 5th) in top-5, got doc %d", r.Doc)
		}
	}
}

func TestBlockMaxWANDMatchesBruteForce(t *testing.T) {
	pm := newMemPageManager(4096)
	fieldNorm, err := CreateFieldNormStore(pm)
	if err != nil {
		t.Fatalf("CreateFieldNormStore() error = %v", err)
	}
	const numDocs = 500
	populateFieldNorms(t, fieldNorm, numDocs, 80)

	var postingsA, postingsB []termPosting
	for i := 0; i < numDocs; i++ {
		postingsA = append(postingsA, termPosting{Doc: DocID(i), Freq: uint32(1 + i%7)})
		if i%2 == 0 {
			postingsB = append(postingsB, termPosting{Doc: DocID(i), Freq: uint32(1 + i%3)})
		}
	}
	weight := NewBm25Weight(1, numDocs, numDocs, 80, DefaultK1, DefaultB)

	infoA := buildSealedTerm(t, pm, fieldNorm, postingsA, weight)
	infoB := buildSealedTerm(t, pm, fieldNorm, postingsB, weight)

	newScorers := func() []*termScorer {
		sa, err := newTermScorer(pm, infoA, weight)
		if err != nil {
			t.Fatalf("newTermScorer(A) error = %v", err)
		}
		sb, err := newTermScorer(pm, infoB, weight)
		if err != nil {
			t.Fatalf("newTermScorer(B) error = %v", err)
		}
		return []*termScorer{sa, sb}
	}

	wandResults, err := BlockMaxWAND(fieldNorm, newScorers(), 10)
	if err != nil {
		t.Fatalf("BlockMaxWAND() error = %v", err)
	}
	bruteResults, err := BruteForceMerge(fieldNorm, newScorers(), 10)
	if err != nil {
		t.Fatalf("BruteForceMerge() error = %v", err)
	}

	if len(wandResults) != len(bruteResults) {
		t.Fatalf("result count mismatch: wand=%d brute=%d", len(wandResults), len(bruteResults))
	}
	for i := range wandResults {
		if wandResults[i].Doc != bruteResults[i].Doc {
			t.Errorf("result %d: wand doc=%d brute doc=%d (scores %v vs %v)",
				i, wandResults[i].Doc, bruteResults[i].Doc, wandResults[i].Score, bruteResults[i].Score)
		}
	}
}

func TestLoserTreeMergesAllScorers(t *testing.T) {
	pm := newMemPageManager(4096)
	fieldNorm, err := CreateFieldNormStore(pm)
	if err != nil {
		t.Fatalf("CreateFieldNormStore() error = %v", err)
	}
	const numDocs = 50
	populateFieldNorms(t, fieldNorm, numDocs, 20)

	weight := NewBm25Weight(1, numDocs, numDocs, 20, DefaultK1, DefaultB)
	infoEven := buildSealedTerm(t, pm, fieldNorm, []termPosting{{Doc: 0, Freq: 1}, {Doc: 2, Freq: 1}, {Doc: 4, Freq: 1}}, weight)
	infoOdd := buildSealedTerm(t, pm, fieldNorm, []termPosting{{Doc: 1, Freq: 1}, {Doc: 3, Freq: 1}}, weight)

	sEven, err := newTermScorer(pm, infoEven, weight)
	if err != nil {
		t.Fatalf("newTermScorer(even) error = %v", err)
	}
	sOdd, err := newTermScorer(pm, infoOdd, weight)
	if err != nil {
		t.Fatalf("newTermScorer(odd) error = %v", err)
	}

	tree := NewLoserTree([]*termScorer{sEven, sOdd})
	var visited []DocID
	for {
		doc, _, err := tree.PopMatching(fieldNorm)
		if err != nil {
			t.Fatalf("PopMatching() error = %v", err)
		}
		if doc == TerminatedDoc {
			break
		}
		visited = append(visited, doc)
	}
	want := []DocID{0, 1, 2, 3, 4}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i, d := range want {
		if visited[i] != d {
			t.Errorf("visited[%d] = %d, want %d", i, visited[i], d)
		}
	}
}

func TestPostingCursorMultiBlockSeek(t *testing.T) {
	pm := newMemPageManager(4096)
	fieldNorm, err := CreateFieldNormStore(pm)
	if err != nil {
		t.Fatalf("CreateFieldNormStore() error = %v", err)
	}
	const numDocs = CompressionBlockSize*3 + 17
	populateFieldNorms(t, fieldNorm, numDocs, 10)

	var postings []termPosting
	for i := 0; i < numDocs; i++ {
		postings = append(postings, termPosting{Doc: DocID(i * 2), Freq: 1})
	}
	weight := NewBm25Weight(1, numDocs, numDocs, 10, DefaultK1, DefaultB)
	info := buildSealedTerm(t, pm, fieldNorm, postings, weight)

	cur, err := NewPostingCursor(pm, info)
	if err != nil {
		t.Fatalf("NewPostingCursor() error = %v", err)
	}
	cur.DecodeBlock()

	target := DocID(postings[CompressionBlockSize+5].Doc)
	got := cur.Seek(target)
	if got != target {
		t.Fatalf("Seek(%d) = %d, want %d", target, got, target)
	}

	// Seeking past the last doc exhausts the cursor.
	if got := cur.Seek(TerminatedDoc - 1); got != TerminatedDoc {
		t.Errorf("Seek(far past end) = %d, want TerminatedDoc", got)
	}
}
