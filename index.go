package bm25idx

import (
	"github.com/vela-storage/bm25idx/config"
)

// IndexOptions is the set of parameters fixed at index-creation time.
type IndexOptions = config.Options

// TupleChecker optionally filters query results down to doc-ids the
// host still considers visible/live, the narrow collaborator standing
// in for MVCC visibility.
type TupleChecker func(doc DocID) bool

// Index is the core's entry point: a BM25 index rooted at a single meta
// page, built on top of a caller-supplied PageManager.
type Index struct {
	pm      PageManager
	metaBlk BlockNumber
	opts    IndexOptions
}

// Create initializes a brand new, empty index: the meta page and its
// four auxiliary streams (field-norm, payload, term-stat, delete
// bitmap), with no growing or sealed segment yet.
func Create(pm PageManager, opts IndexOptions) (*Index, error) {
	opts, err := opts.Validate()
	if err != nil {
		return nil, err
	}

	metaBlk, guard, err := pm.PageAlloc(PageFlagMeta)
	if err != nil {
		return nil, err
	}
	InitPage(guard.Data(), PageFlagMeta)
	guard.Release()

	fieldNorm, err := CreateFieldNormStore(pm)
	if err != nil {
		return nil, err
	}
	payload, err := CreatePayloadStore(pm)
	if err != nil {
		return nil, err
	}
	termStat, err := CreateTermStatStore(pm)
	if err != nil {
		return nil, err
	}
	deleteBitmap, err := CreateDeleteBitmapStore(pm)
	if err != nil {
		return nil, err
	}

	meta := InitMetaPageData(fieldNorm.Root(), payload.Root(), termStat.Root(), deleteBitmap.Root())

	guard, err = pm.PageWrite(metaBlk)
	if err != nil {
		return nil, err
	}
	EncodeMetaPageData(guard.Data(), meta)
	guard.Release()

	return &Index{pm: pm, metaBlk: metaBlk, opts: opts}, nil
}

// Open wraps an existing index rooted at metaBlk.
func Open(pm PageManager, metaBlk BlockNumber, opts IndexOptions) (*Index, error) {
	opts, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	return &Index{pm: pm, metaBlk: metaBlk, opts: opts}, nil
}

// MetaBlock returns the index's root meta page, to be persisted by the
// caller (e.g. into the host's catalog entry for this relation).
func (idx *Index) MetaBlock() BlockNumber { return idx.metaBlk }

// Build bulk-loads docs into a freshly created index, one vector and
// external locator pair per document, then seals the growing segment
// once.
func Build(pm PageManager, opts IndexOptions, docs []BuildDoc) (*Index, error) {
	idx, err := Create(pm, opts)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if err := idx.Insert(d.Vector, d.Locator); err != nil {
			return nil, err
		}
	}
	if err := idx.forceSeal(); err != nil {
		return nil, err
	}
	return idx, nil
}

// BuildDoc is one document supplied to Build: its sparse vector and the
// host's opaque locator for it.
type BuildDoc struct {
	Vector  Vector
	Locator ExternalLocator
}

// Insert appends vector (owned by locator) to the index, under the
// meta page's write lock: it assigns the next doc-id, extends every
// per-doc auxiliary store, appends the vector to the growing segment,
// and bumps each posted term's document frequency and the corpus's
// running term-id watermark. If the growing segment crosses its full
// page threshold, Insert then attempts a non-blocking exclusive lock on
// the meta page and, on success, folds the growing segment into the
// sealed one; on failure (another inserter is already sealing) it
// leaves the growing segment intact for the next attempt.
func (idx *Index) Insert(vector Vector, locator ExternalLocator) error {
	if err := vector.Validate(); err != nil {
		return err
	}

	guard, err := idx.pm.PageWrite(idx.metaBlk)
	if err != nil {
		return err
	}
	meta := DecodeMetaPageData(guard.Data())

	doc := meta.CurrentDocID
	meta.CurrentDocID++
	meta.DocCnt++
	meta.DocTermCnt += uint64(vector.DocLen)
	for _, p := range vector.Postings {
		if uint32(p.Term)+1 > meta.TermIDCnt {
			meta.TermIDCnt = uint32(p.Term) + 1
		}
	}

	needsSeal, err := GrowingSegmentInsert(idx.pm, &meta, vector, idx.opts.GrowingSegmentMaxPageCount)
	if err != nil {
		guard.Release()
		return err
	}

	fieldNorm, err := OpenFieldNormStore(idx.pm, meta.FieldNormBlkno)
	if err != nil {
		guard.Release()
		return err
	}
	if err := fieldNorm.Append(doc, vector.DocLen); err != nil {
		guard.Release()
		return err
	}
	payload, err := OpenPayloadStore(idx.pm, meta.PayloadBlkno)
	if err != nil {
		guard.Release()
		return err
	}
	if err := payload.Append(doc, locator); err != nil {
		guard.Release()
		return err
	}
	termStat, err := OpenTermStatStore(idx.pm, meta.TermStatBlkno)
	if err != nil {
		guard.Release()
		return err
	}
	for _, p := range vector.Postings {
		if err := termStat.IncrDocFreq(p.Term, 1); err != nil {
			guard.Release()
			return err
		}
	}
	EncodeMetaPageData(guard.Data(), meta)
	guard.Release()

	if !needsSeal {
		return nil
	}
	return idx.trySeal()
}

// trySeal attempts a non-blocking exclusive lock on the meta page and,
// on success, folds the growing segment into the sealed one. Failure to
// acquire the lock (another inserter is already sealing) is not an
// error: this inserter simply leaves sealing to whoever holds it.
func (idx *Index) trySeal() error {
	ok, err := idx.pm.ConditionalLockPage(idx.metaBlk, LockExclusive)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer idx.pm.UnlockPage(idx.metaBlk, LockExclusive)

	guard, err := idx.pm.PageWrite(idx.metaBlk)
	if err != nil {
		return err
	}
	meta := DecodeMetaPageData(guard.Data())
	if err := SealGrowingSegment(idx.pm, &meta); err != nil {
		guard.Release()
		return err
	}
	EncodeMetaPageData(guard.Data(), meta)
	guard.Release()
	return nil
}

// forceSeal seals unconditionally, used by Build after the last insert
// regardless of whether the full-page threshold was crossed.
func (idx *Index) forceSeal() error {
	guard, err := idx.pm.PageWrite(idx.metaBlk)
	if err != nil {
		return err
	}
	meta := DecodeMetaPageData(guard.Data())
	if err := SealGrowingSegment(idx.pm, &meta); err != nil {
		guard.Release()
		return err
	}
	EncodeMetaPageData(guard.Data(), meta)
	guard.Release()
	return nil
}

// ReachabilityChecker reports whether the host can still resolve
// locator to a live row; BulkDelete tombstones every doc-id it rejects.
type ReachabilityChecker func(locator ExternalLocator) bool

// BulkDelete walks the payload store and tombstones every doc-id whose
// external locator reachable reports unreachable, the vacuum path:
// postings are not physically removed, but queries skip tombstoned
// doc-ids via the delete bitmap.
func (idx *Index) BulkDelete(reachable ReachabilityChecker) (uint32, error) {
	guard, err := idx.pm.PageWrite(idx.metaBlk)
	if err != nil {
		return 0, err
	}
	meta := DecodeMetaPageData(guard.Data())
	deleteBitmap, err := OpenDeleteBitmapStore(idx.pm, meta.DeleteBitmapBlkno, uint32(meta.CurrentDocID))
	if err != nil {
		guard.Release()
		return 0, err
	}
	payload, err := OpenPayloadStore(idx.pm, meta.PayloadBlkno)
	if err != nil {
		guard.Release()
		return 0, err
	}
	fieldNorm, err := OpenFieldNormStore(idx.pm, meta.FieldNormBlkno)
	if err != nil {
		guard.Release()
		return 0, err
	}

	var removed uint32
	for d := DocID(0); d < meta.CurrentDocID; d++ {
		if deleteBitmap.IsDeleted(d) {
			continue
		}
		loc, err := payload.Read(d)
		if err != nil {
			guard.Release()
			return 0, err
		}
		if reachable != nil && reachable(loc) {
			continue
		}
		if err := deleteBitmap.Delete(d); err != nil {
			guard.Release()
			return 0, err
		}
		docLen, err := fieldNorm.ReadLen(d)
		if err != nil {
			guard.Release()
			return 0, err
		}
		if meta.DocCnt > 0 {
			meta.DocCnt--
		}
		if dl := uint64(docLen); dl <= meta.DocTermCnt {
			meta.DocTermCnt -= dl
		} else {
			meta.DocTermCnt = 0
		}
		removed++
	}

	EncodeMetaPageData(guard.Data(), meta)
	guard.Release()
	return removed, nil
}

// QueryTerm is one term of a query's sparse vector: its term-id and the
// query-side boost (its count within the query).
type QueryTerm struct {
	Term  TermID
	Boost uint32
}

// Query runs the block-max WAND top-k scorer over the sealed segment
// for the given query terms, returning the k highest-scoring documents'
// external locators. Doc-ids tombstoned in the delete bitmap, or
// rejected by an optional TupleChecker, are skipped.
func (idx *Index) Query(terms []QueryTerm, k int, check TupleChecker) ([]ScoredLocator, error) {
	guard, err := idx.pm.PageRead(idx.metaBlk)
	if err != nil {
		return nil, err
	}
	meta := DecodeMetaPageData(guard.Data())
	guard.Release()

	if meta.Sealed.TermInfoBlkno == InvalidBlockNumber || len(terms) == 0 {
		return nil, nil
	}

	fieldNorm, err := OpenFieldNormStore(idx.pm, meta.FieldNormBlkno)
	if err != nil {
		return nil, err
	}
	termInfo, err := OpenTermInfoStore(idx.pm, meta.Sealed.TermInfoBlkno)
	if err != nil {
		return nil, err
	}
	termStat, err := OpenTermStatStore(idx.pm, meta.TermStatBlkno)
	if err != nil {
		return nil, err
	}
	deleteBitmap, err := OpenDeleteBitmapStore(idx.pm, meta.DeleteBitmapBlkno, uint32(meta.CurrentDocID))
	if err != nil {
		return nil, err
	}

	var scorers []*termScorer
	for _, qt := range terms {
		info, err := termInfo.Read(qt.Term, meta.Sealed.TermIDCnt)
		if err != nil {
			return nil, err
		}
		if info.IsEmpty() {
			continue
		}
		df, err := termStat.DocFreq(qt.Term)
		if err != nil {
			return nil, err
		}
		if df == 0 {
			continue
		}
		weight := NewBm25Weight(float32(qt.Boost), meta.DocCnt, df, meta.avgdl(), idx.opts.K1, idx.opts.B)
		scorer, err := newTermScorer(idx.pm, info, weight)
		if err != nil {
			return nil, err
		}
		if scorer.exhausted {
			continue
		}
		scorers = append(scorers, scorer)
	}
	if len(scorers) == 0 {
		return nil, nil
	}

	results, err := BlockMaxWAND(fieldNorm, scorers, overFetchFor(k, deleteBitmap, check))
	if err != nil {
		return nil, err
	}

	payload, err := OpenPayloadStore(idx.pm, meta.PayloadBlkno)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredLocator, 0, k)
	for _, r := range results {
		if len(out) >= k {
			break
		}
		if deleteBitmap.IsDeleted(r.Doc) {
			continue
		}
		if check != nil && !check(r.Doc) {
			continue
		}
		loc, err := payload.Read(r.Doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredLocator{Locator: loc, Score: r.Score})
	}
	return out, nil
}

// overFetchFor widens the WAND top-k window when a delete bitmap or
// tuple checker is present, since post-filtering can drop candidates
// the scorer already committed to the bounded heap. Deleted/filtered
// docs are rare enough in steady state that a modest constant overfetch
// keeps this cheap without having to thread the filter into the scorer
// itself.
func overFetchFor(k int, deleteBitmap *DeleteBitmapStore, check TupleChecker) int {
	if deleteBitmap.DeletedCount() == 0 && check == nil {
		return k
	}
	return k * 4
}

// ScoredLocator is one query result resolved back to the host's opaque
// external locator.
type ScoredLocator struct {
	Locator ExternalLocator
	Score   float32
}
