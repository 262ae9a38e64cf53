package bm25idx

import "encoding/binary"

// metaDataVersion is the current on-disk format version, bumped whenever
// MetaPageData's layout changes incompatibly.
const metaDataVersion uint32 = 1

// metaLayoutSize is the number of bytes MetaPageData occupies within the
// meta page's payload; the remainder of the page is unused reserve.
const metaLayoutSize = 64

// GrowingSegmentData describes the mutable, append-only growing segment:
// the page chain holding not-yet-sealed vectors.
type GrowingSegmentData struct {
	FirstBlkno           BlockNumber
	LastBlkno            BlockNumber
	GrowingFullPageCount uint32
}

// SealedSegmentData describes the immutable sealed segment: the root of
// the dense term-info array and how many term-ids it currently covers.
type SealedSegmentData struct {
	TermInfoBlkno BlockNumber
	TermIDCnt     uint32
}

// MetaPageData is the index's single root of trust, read at the start
// of every operation and rewritten, under an exclusive page lock, at the
// end of every insert or seal.
type MetaPageData struct {
	Version uint32

	// DocCnt is the number of live (non-deleted) documents; DocTermCnt
	// is the sum of their doc_len, together giving avgdl().
	DocCnt     uint32
	DocTermCnt uint64

	// TermIDCnt is the number of distinct term-ids ever assigned.
	TermIDCnt uint32

	// CurrentDocID is the next doc-id to assign; SealedDocID is the
	// first doc-id not yet folded into the sealed segment.
	CurrentDocID DocID
	SealedDocID  DocID

	FieldNormBlkno    BlockNumber
	PayloadBlkno      BlockNumber
	TermStatBlkno     BlockNumber
	DeleteBitmapBlkno BlockNumber

	Growing GrowingSegmentData
	Sealed  SealedSegmentData
}

// avgdl returns the corpus average document length, the AvgDL term in
// every Bm25Weight derived from this index.
func (m MetaPageData) avgdl() float32 {
	if m.DocCnt == 0 {
		return 1
	}
	return float32(m.DocTermCnt) / float32(m.DocCnt)
}

// EncodeMetaPageData serializes m into page's payload.
func EncodeMetaPageData(page []byte, m MetaPageData) {
	body := Payload(page)
	binary.LittleEndian.PutUint32(body[0:4], m.Version)
	binary.LittleEndian.PutUint32(body[4:8], m.DocCnt)
	binary.LittleEndian.PutUint64(body[8:16], m.DocTermCnt)
	binary.LittleEndian.PutUint32(body[16:20], m.TermIDCnt)
	binary.LittleEndian.PutUint32(body[20:24], uint32(m.CurrentDocID))
	binary.LittleEndian.PutUint32(body[24:28], uint32(m.SealedDocID))
	binary.LittleEndian.PutUint32(body[28:32], uint32(m.FieldNormBlkno))
	binary.LittleEndian.PutUint32(body[32:36], uint32(m.PayloadBlkno))
	binary.LittleEndian.PutUint32(body[36:40], uint32(m.TermStatBlkno))
	binary.LittleEndian.PutUint32(body[40:44], uint32(m.DeleteBitmapBlkno))
	binary.LittleEndian.PutUint32(body[44:48], uint32(m.Growing.FirstBlkno))
	binary.LittleEndian.PutUint32(body[48:52], uint32(m.Growing.LastBlkno))
	binary.LittleEndian.PutUint32(body[52:56], m.Growing.GrowingFullPageCount)
	binary.LittleEndian.PutUint32(body[56:60], uint32(m.Sealed.TermInfoBlkno))
	binary.LittleEndian.PutUint32(body[60:64], m.Sealed.TermIDCnt)
}

// DecodeMetaPageData reads a MetaPageData from page's payload.
func DecodeMetaPageData(page []byte) MetaPageData {
	body := Payload(page)
	return MetaPageData{
		Version:           binary.LittleEndian.Uint32(body[0:4]),
		DocCnt:            binary.LittleEndian.Uint32(body[4:8]),
		DocTermCnt:        binary.LittleEndian.Uint64(body[8:16]),
		TermIDCnt:         binary.LittleEndian.Uint32(body[16:20]),
		CurrentDocID:      DocID(binary.LittleEndian.Uint32(body[20:24])),
		SealedDocID:       DocID(binary.LittleEndian.Uint32(body[24:28])),
		FieldNormBlkno:    BlockNumber(binary.LittleEndian.Uint32(body[28:32])),
		PayloadBlkno:      BlockNumber(binary.LittleEndian.Uint32(body[32:36])),
		TermStatBlkno:     BlockNumber(binary.LittleEndian.Uint32(body[36:40])),
		DeleteBitmapBlkno: BlockNumber(binary.LittleEndian.Uint32(body[40:44])),
		Growing: GrowingSegmentData{
			FirstBlkno:           BlockNumber(binary.LittleEndian.Uint32(body[44:48])),
			LastBlkno:            BlockNumber(binary.LittleEndian.Uint32(body[48:52])),
			GrowingFullPageCount: binary.LittleEndian.Uint32(body[52:56]),
		},
		Sealed: SealedSegmentData{
			TermInfoBlkno: BlockNumber(binary.LittleEndian.Uint32(body[56:60])),
			TermIDCnt:     binary.LittleEndian.Uint32(body[60:64]),
		},
	}
}

// InitMetaPageData returns a freshly initialized meta for an empty index
// whose auxiliary stores are rooted at the given block numbers.
func InitMetaPageData(fieldNorm, payload, termStat, deleteBitmap BlockNumber) MetaPageData {
	return MetaPageData{
		Version:           metaDataVersion,
		CurrentDocID:      0,
		SealedDocID:       0,
		FieldNormBlkno:    fieldNorm,
		PayloadBlkno:      payload,
		TermStatBlkno:     termStat,
		DeleteBitmapBlkno: deleteBitmap,
		Growing:           GrowingSegmentData{FirstBlkno: InvalidBlockNumber, LastBlkno: InvalidBlockNumber},
		Sealed:            SealedSegmentData{TermInfoBlkno: InvalidBlockNumber},
	}
}

// ReadMetaPageData acquires a shared lock on the meta page and decodes
// it.
func ReadMetaPageData(pm PageManager, blkno BlockNumber) (MetaPageData, error) {
	guard, err := pm.PageRead(blkno)
	if err != nil {
		return MetaPageData{}, err
	}
	defer guard.Release()
	return DecodeMetaPageData(guard.Data()), nil
}

// WriteMetaPageData acquires an exclusive lock on the meta page and
// rewrites it in place.
func WriteMetaPageData(pm PageManager, blkno BlockNumber, m MetaPageData) error {
	guard, err := pm.PageWrite(blkno)
	if err != nil {
		return err
	}
	defer guard.Release()
	EncodeMetaPageData(guard.Data(), m)
	return nil
}
