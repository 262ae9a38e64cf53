package bm25idx

import (
	"unsafe"

	"github.com/vela-storage/bm25idx/internal/fastmap"
)

// termPosting is one (doc-id, term-frequency) pair accumulated for a
// single term while rolling the growing segment into the sealed one.
type termPosting struct {
	Doc  DocID
	Freq uint32
}

// termPostingLists accumulates each touched term-id's posting list
// during a seal round, keyed by term-id. Term-ids are small, densely
// assigned, sequential integers, exactly the key distribution
// internal/fastmap's fibonacci hashing is built for.
type termPostingLists struct {
	m fastmap.Uint32Map
}

func (t *termPostingLists) append(term TermID, p termPosting) {
	if ptr := t.m.Get(uint32(term)); ptr != nil {
		lst := (*[]termPosting)(ptr)
		*lst = append(*lst, p)
		return
	}
	lst := &[]termPosting{p}
	t.m.Set(uint32(term), unsafe.Pointer(lst))
}

func (t *termPostingLists) get(term TermID) []termPosting {
	ptr := t.m.Get(uint32(term))
	if ptr == nil {
		return nil
	}
	return *(*[]termPosting)(ptr)
}

// SkipInfoWriter appends fixed-size SkipBlock entries to a chain of
// pages tagged PageFlagSkipInfo, bump-allocating within each page the
// same way GrowingSegmentInsert does, and chaining to a fresh page once
// the current one can no longer hold a whole entry.
type SkipInfoWriter struct {
	pm         PageManager
	firstBlkno BlockNumber
	lastBlkno  BlockNumber
}

// NewSkipInfoWriter allocates the chain's first page.
func NewSkipInfoWriter(pm PageManager) (*SkipInfoWriter, error) {
	blkno, guard, err := pm.PageAllocWithFSM(PageFlagSkipInfo)
	if err != nil {
		return nil, err
	}
	InitPage(guard.Data(), PageFlagSkipInfo)
	guard.Release()
	return &SkipInfoWriter{pm: pm, firstBlkno: blkno, lastBlkno: blkno}, nil
}

// Append writes entry, starting a new page first if the current one is
// too full to hold it.
func (w *SkipInfoWriter) Append(entry SkipBlock) error {
	buf := make([]byte, SkipBlockSize)
	EncodeSkipBlock(buf, entry)

	guard, err := w.pm.PageWrite(w.lastBlkno)
	if err != nil {
		return err
	}
	if appendRecordLocked(guard, buf) {
		guard.Release()
		return nil
	}
	guard.Release()

	newBlkno, newGuard, err := w.pm.PageAllocWithFSM(PageFlagSkipInfo)
	if err != nil {
		return err
	}
	InitPage(newGuard.Data(), PageFlagSkipInfo)
	appendRecordLocked(newGuard, buf)
	newGuard.Release()

	oldGuard, err := w.pm.PageWrite(w.lastBlkno)
	if err != nil {
		return err
	}
	header := DecodeHeader(oldGuard.Data())
	header.NextBlkno = newBlkno
	EncodeHeader(oldGuard.Data(), header)
	oldGuard.Release()

	w.lastBlkno = newBlkno
	return nil
}

// collectExistingPostings walks term's current sealed postings (if any)
// into out, in ascending doc-id order.
func collectExistingPostings(pm PageManager, info PostingTermInfo, out []termPosting) ([]termPosting, error) {
	if info.IsEmpty() {
		return out, nil
	}
	cur, err := NewPostingCursor(pm, info)
	if err != nil {
		return nil, err
	}
	if cur.Completed() {
		return out, nil
	}
	cur.DecodeBlock()
	for {
		out = append(out, termPosting{Doc: cur.DocID(), Freq: cur.Freq()})
		if cur.NextWithAutoDecode() {
			continue
		}
		break
	}
	return out, nil
}

// blockMaxEntry returns the (tf, fieldnorm_id) of the highest-scoring
// posting among docs/freqs under weight: the block-max hint recorded
// in a skip entry.
func blockMaxEntry(fieldNorm *FieldNormStore, docs []uint32, freqs []uint32, weight Bm25Weight) (uint32, uint8, error) {
	var bestScore float32 = -1
	var bestTF uint32
	var bestID uint8
	for i := range docs {
		id, err := fieldNorm.Read(DocID(docs[i]))
		if err != nil {
			return 0, 0, err
		}
		score := weight.Score(idToFieldNorm(id), freqs[i])
		if score > bestScore {
			bestScore = score
			bestTF = freqs[i]
			bestID = id
		}
	}
	return bestTF, bestID, nil
}

// termChainBuilder accumulates one term's postings into full
// CompressionBlockSize blocks plus a trailing partial block, the same
// layout the original serializer's write_new_term_id produces. Full-block
// boundaries and block-max doc selection come from a BlockPartitioner,
// decided once over the whole term up front; the builder only encodes
// the blocks the partitioner hands it.
type termChainBuilder struct {
	pm        PageManager
	fieldNorm *FieldNormStore
	weight    Bm25Weight

	encoder     DeltaBitpackEncode
	blockData   *BlockDataWriter
	skipInfo    *SkipInfoWriter
	blockCount  uint32
	lastFullDoc DocID
}

// addFullBlock encodes one full CompressionBlockSize block. bestIdx is
// the BlockPartitioner-chosen index (into docs/freqs) of the block's
// highest-scoring posting, so the block-max entry is read off directly
// instead of rescanning every posting's score again.
func (b *termChainBuilder) addFullBlock(docs, freqs []uint32, bestIdx int) error {
	if b.blockData == nil {
		w, err := NewBlockDataWriter(b.pm)
		if err != nil {
			return err
		}
		b.blockData = w
		siw, err := NewSkipInfoWriter(b.pm)
		if err != nil {
			return err
		}
		b.skipInfo = siw
	}

	data := b.encoder.Encode(uint32(b.lastFullDoc), docs, freqs)

	pageChanged, err := b.blockData.WriteNoCross(b.pm, data)
	if err != nil {
		return err
	}
	fieldnormID, err := b.fieldNorm.Read(DocID(docs[bestIdx]))
	if err != nil {
		return err
	}
	var flag SkipBlockFlags
	if pageChanged {
		flag |= SkipBlockPageChanged
	}
	newLastDoc := DocID(docs[len(docs)-1])
	if err := b.skipInfo.Append(SkipBlock{
		LastDoc:              newLastDoc,
		BlockwandTF:          freqs[bestIdx],
		DocCnt:               uint32(len(docs)),
		Size:                 uint16(len(data)),
		BlockwandFieldnormID: fieldnormID,
		Flag:                 flag,
	}); err != nil {
		return err
	}
	b.lastFullDoc = newLastDoc
	b.blockCount++
	return nil
}

// finish flushes the trailing partial block tail (if any; a
// BlockPartitioner only ever reports full-block partitions, so the tail
// is still scored by a direct scan via blockMaxEntry) and persists the
// term's meta page, returning its PostingTermInfo.
func (b *termChainBuilder) finish(tailDocs, tailFreqs []uint32) (PostingTermInfo, error) {
	meta := PostingTermMetaData{
		BlockCount:             b.blockCount,
		LastFullBlockLastDocID: b.lastFullDoc,
	}

	if len(tailDocs) != 0 {
		tf, fieldnormID, err := blockMaxEntry(b.fieldNorm, tailDocs, tailFreqs, b.weight)
		if err != nil {
			return PostingTermInfo{}, err
		}
		meta.UnfulledDocCnt = uint32(len(tailDocs))
		for i := range tailDocs {
			meta.UnfulledDocID[i] = DocID(tailDocs[i])
			meta.UnfulledFreq[i] = tailFreqs[i]
		}
		meta.HasUnfulledSkipBlock = true
		meta.UnfulledSkipBlock = SkipBlock{
			LastDoc:              DocID(tailDocs[len(tailDocs)-1]),
			BlockwandTF:          tf,
			DocCnt:               uint32(len(tailDocs)),
			BlockwandFieldnormID: fieldnormID,
			Flag:                 SkipBlockUnfulled,
		}
		meta.BlockCount++
	}

	if b.skipInfo != nil {
		meta.SkipInfoBlkno = b.skipInfo.firstBlkno
		meta.SkipInfoLastBlkno = b.skipInfo.lastBlkno
	} else {
		meta.SkipInfoBlkno = InvalidBlockNumber
		meta.SkipInfoLastBlkno = InvalidBlockNumber
	}
	if b.blockData != nil {
		meta.BlockDataBlkno = b.blockData.Root()
	} else {
		meta.BlockDataBlkno = InvalidBlockNumber
	}

	metaBlkno, guard, err := b.pm.PageAllocWithFSM(PageFlagTermMeta)
	if err != nil {
		return PostingTermInfo{}, err
	}
	InitPage(guard.Data(), PageFlagTermMeta)
	EncodeTermMeta(guard.Data(), meta)
	guard.Release()

	return PostingTermInfo{MetaBlkno: metaBlkno}, nil
}

// buildTermChain encodes postings (already in ascending doc-id order) as
// a fresh skip-info/block-data chain plus inline unfulled tail, and
// returns the term's new PostingTermInfo. A BlockPartitioner decides the
// full-block boundaries and each block's block-max posting over the
// term's whole score sequence before any block is written.
func buildTermChain(pm PageManager, fieldNorm *FieldNormStore, postings []termPosting, weight Bm25Weight) (PostingTermInfo, error) {
	if len(postings) == 0 {
		return EmptyPostingTermInfo(), nil
	}

	partitioner := NewFixedBlockPartition()
	for _, p := range postings {
		id, err := fieldNorm.Read(p.Doc)
		if err != nil {
			return PostingTermInfo{}, err
		}
		partitioner.AddDoc(weight.Score(idToFieldNorm(id), p.Freq))
	}
	partitioner.MakePartitions()

	docs := make([]uint32, len(postings))
	freqs := make([]uint32, len(postings))
	for i, p := range postings {
		docs[i] = uint32(p.Doc)
		freqs[i] = p.Freq
	}

	b := &termChainBuilder{pm: pm, fieldNorm: fieldNorm, weight: weight}
	boundaries := partitioner.Partitions()
	maxDoc := partitioner.MaxDoc()
	start := uint32(0)
	for i, end := range boundaries {
		bestIdx := int(maxDoc[i] - start)
		if err := b.addFullBlock(docs[start:end+1], freqs[start:end+1], bestIdx); err != nil {
			return PostingTermInfo{}, err
		}
		start = end + 1
	}

	return b.finish(docs[start:], freqs[start:])
}

// SealGrowingSegment rolls every vector in the growing segment into a
// freshly built sealed segment merged with the segment's current
// postings, and resets the growing segment to empty. Unlike the
// incremental in-place append the format's inventor uses,
// this always rebuilds each touched term's chain from scratch: simpler
// and uniform, at the cost of rewriting postings that were already
// sealed. Pages belonging to the previous sealed segment and to the
// drained growing segment are abandoned rather than reclaimed; nothing
// in the core calls PageFree, BulkDelete included.
func SealGrowingSegment(pm PageManager, meta *MetaPageData) error {
	if meta.Growing.FirstBlkno == InvalidBlockNumber {
		return nil
	}

	fieldNorm, err := OpenFieldNormStore(pm, meta.FieldNormBlkno)
	if err != nil {
		return err
	}

	oldTermInfo, err := OpenTermInfoStore(pm, meta.Sealed.TermInfoBlkno)
	if err != nil && meta.Sealed.TermInfoBlkno != InvalidBlockNumber {
		return err
	}

	var perTerm termPostingLists

	if meta.Sealed.TermInfoBlkno != InvalidBlockNumber {
		for t := TermID(0); uint32(t) < meta.Sealed.TermIDCnt; t++ {
			info, err := oldTermInfo.Read(t, meta.Sealed.TermIDCnt)
			if err != nil {
				return err
			}
			if info.IsEmpty() {
				continue
			}
			list, err := collectExistingPostings(pm, info, nil)
			if err != nil {
				return err
			}
			for _, p := range list {
				perTerm.append(t, p)
			}
		}
	}

	docID := meta.SealedDocID
	walkErr := GrowingSegmentForEach(pm, meta.Growing, func(v Vector) error {
		for _, p := range v.Postings {
			perTerm.append(p.Term, termPosting{Doc: docID, Freq: p.Count})
		}
		docID++
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	newTermIDCnt := meta.Sealed.TermIDCnt
	if meta.TermIDCnt > newTermIDCnt {
		newTermIDCnt = meta.TermIDCnt
	}

	weight := NewBm25Weight(1, meta.DocCnt, 1, meta.avgdl(), DefaultK1, DefaultB)

	newTermInfo, err := CreateTermInfoStore(pm)
	if err != nil {
		return err
	}
	for t := TermID(0); uint32(t) < newTermIDCnt; t++ {
		postings := perTerm.get(t)
		info, err := buildTermChain(pm, fieldNorm, postings, weight)
		if err != nil {
			return err
		}
		if err := newTermInfo.Write(t, info); err != nil {
			return err
		}
	}

	meta.Sealed = SealedSegmentData{TermInfoBlkno: newTermInfo.Root(), TermIDCnt: newTermIDCnt}
	meta.SealedDocID = meta.CurrentDocID
	meta.Growing = GrowingSegmentData{FirstBlkno: InvalidBlockNumber, LastBlkno: InvalidBlockNumber}
	return nil
}
