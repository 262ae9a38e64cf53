package bm25idx

import "encoding/binary"

// DefaultGrowingSegmentMaxPageCount is the number of full pages the
// growing segment may accumulate before an insert signals that it is
// ready to be sealed.
const DefaultGrowingSegmentMaxPageCount uint32 = 4096

const (
	growingRecordInline   byte = 0
	growingRecordRedirect byte = 1
)

func buildInlineRecord(data []byte) []byte {
	rec := make([]byte, 5+len(data))
	rec[0] = growingRecordInline
	binary.LittleEndian.PutUint32(rec[1:5], uint32(len(data)))
	copy(rec[5:], data)
	return rec
}

func buildRedirectRecord(first BlockNumber) []byte {
	rec := make([]byte, 5)
	rec[0] = growingRecordRedirect
	binary.LittleEndian.PutUint32(rec[1:5], uint32(first))
	return rec
}

// writeOverflowChain stores data across a chain of pages tagged
// PageFlagGrowingRedirect, for a vector too large to fit as a single
// record in an otherwise-empty growing page.
func writeOverflowChain(pm PageManager, data []byte) (BlockNumber, error) {
	pageCap := PayloadSize(pm.PageSize())

	firstBlkno, guard, err := pm.PageAlloc(PageFlagGrowingRedirect)
	if err != nil {
		return InvalidBlockNumber, err
	}
	InitPage(guard.Data(), PageFlagGrowingRedirect)

	lenPrefixed := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(lenPrefixed[0:4], uint32(len(data)))
	copy(lenPrefixed[4:], data)

	prevGuard := guard
	remaining := lenPrefixed
	for {
		n := uint32(len(remaining))
		if n > pageCap {
			n = pageCap
		}
		copy(Payload(prevGuard.Data()), remaining[:n])
		remaining = remaining[n:]
		if len(remaining) == 0 {
			prevGuard.Release()
			break
		}
		nextBlkno, nextGuard, err := pm.PageAlloc(PageFlagGrowingRedirect)
		if err != nil {
			prevGuard.Release()
			return InvalidBlockNumber, err
		}
		InitPage(nextGuard.Data(), PageFlagGrowingRedirect)
		header := DecodeHeader(prevGuard.Data())
		header.NextBlkno = nextBlkno
		EncodeHeader(prevGuard.Data(), header)
		prevGuard.Release()
		prevGuard = nextGuard
	}
	return firstBlkno, nil
}

// readOverflowChain reads back a vector's encoded bytes from the chain
// rooted at first.
func readOverflowChain(pm PageManager, first BlockNumber) ([]byte, error) {
	pageCap := PayloadSize(pm.PageSize())
	var out []byte
	var total uint32 = ^uint32(0)
	blkno := first
	for blkno != InvalidBlockNumber {
		guard, err := pm.PageRead(blkno)
		if err != nil {
			return nil, err
		}
		chunk := Payload(guard.Data())
		if total == ^uint32(0) {
			total = binary.LittleEndian.Uint32(chunk[0:4])
			chunk = chunk[4:]
		}
		need := int(total) - len(out)
		if need > len(chunk) {
			need = len(chunk)
		}
		if need > 0 {
			out = append(out, chunk[:need]...)
		}
		header := DecodeHeader(guard.Data())
		guard.Release()
		if uint32(len(out)) >= total {
			break
		}
		blkno = header.NextBlkno
		_ = pageCap
	}
	return out, nil
}

// GrowingSegmentInsert appends vector to the growing segment, creating
// it if this is the index's first insert. It returns true once the
// segment has accumulated maxPageCount full pages, signaling the caller
// to attempt a seal.
func GrowingSegmentInsert(pm PageManager, meta *MetaPageData, vector Vector, maxPageCount uint32) (bool, error) {
	data := EncodeVector(vector)
	rec := buildInlineRecord(data)

	if uint32(len(rec)) > PayloadSize(pm.PageSize()) {
		firstBlkno, err := writeOverflowChain(pm, data)
		if err != nil {
			return false, err
		}
		rec = buildRedirectRecord(firstBlkno)
	}

	if meta.Growing.FirstBlkno == InvalidBlockNumber {
		blkno, guard, err := pm.PageAllocWithFSM(PageFlagGrowing)
		if err != nil {
			return false, err
		}
		InitPage(guard.Data(), PageFlagGrowing)
		if !appendRecordLocked(guard, rec) {
			guard.Release()
			return false, NewError(InputInvalid, "vector record does not fit an empty growing page")
		}
		guard.Release()
		meta.Growing = GrowingSegmentData{FirstBlkno: blkno, LastBlkno: blkno}
		return false, nil
	}

	guard, err := pm.PageWrite(meta.Growing.LastBlkno)
	if err != nil {
		return false, err
	}
	if appendRecordLocked(guard, rec) {
		guard.Release()
		return false, nil
	}

	newBlkno, newGuard, err := pm.PageAllocWithFSM(PageFlagGrowing)
	if err != nil {
		guard.Release()
		return false, err
	}
	InitPage(newGuard.Data(), PageFlagGrowing)
	if !appendRecordLocked(newGuard, rec) {
		newGuard.Release()
		guard.Release()
		return false, NewError(InputInvalid, "vector record does not fit a fresh growing page")
	}
	newGuard.Release()

	header := DecodeHeader(guard.Data())
	header.NextBlkno = newBlkno
	EncodeHeader(guard.Data(), header)
	guard.Release()

	meta.Growing.LastBlkno = newBlkno
	meta.Growing.GrowingFullPageCount++
	return meta.Growing.GrowingFullPageCount >= maxPageCount, nil
}

// appendRecordLocked bump-allocates rec into guard's page if it fits,
// returning false without mutating the page otherwise.
func appendRecordLocked(guard PageWriteGuard, rec []byte) bool {
	header := DecodeHeader(guard.Data())
	payload := Payload(guard.Data())
	if uint32(header.PdLower)+uint32(len(rec)) > uint32(len(payload)) {
		return false
	}
	copy(payload[header.PdLower:], rec)
	header.PdLower += uint16(len(rec))
	EncodeHeader(guard.Data(), header)
	return true
}

// GrowingSegmentForEach walks every vector in the growing segment in
// append order, in the teacher's lending-iterator style: cb receives
// each vector by value. Every vector, inline or redirected to an
// overflow chain, is decoded into a freshly allocated Postings slice,
// so cb may retain it past the call.
func GrowingSegmentForEach(pm PageManager, data GrowingSegmentData, cb func(Vector) error) error {
	if data.FirstBlkno == InvalidBlockNumber {
		return nil
	}
	blkno := data.FirstBlkno
	for blkno != InvalidBlockNumber {
		guard, err := pm.PageRead(blkno)
		if err != nil {
			return err
		}
		header := DecodeHeader(guard.Data())
		payload := Payload(guard.Data())
		offset := uint16(0)
		for offset < header.PdLower {
			tag := payload[offset]
			var raw []byte
			var consumed uint16
			switch tag {
			case growingRecordInline:
				n := binary.LittleEndian.Uint32(payload[offset+1 : offset+5])
				raw = payload[offset+5 : offset+5+uint16(n)]
				consumed = 5 + uint16(n)
			case growingRecordRedirect:
				first := BlockNumber(binary.LittleEndian.Uint32(payload[offset+1 : offset+5]))
				guard.Release()
				redirected, err := readOverflowChain(pm, first)
				if err != nil {
					return err
				}
				guard, err = pm.PageRead(blkno)
				if err != nil {
					return err
				}
				payload = Payload(guard.Data())
				raw = redirected
				consumed = 5
			default:
				guard.Release()
				return NewError(CorruptPage, "unknown growing record tag")
			}
			v, err := DecodeVector(raw)
			if err != nil {
				guard.Release()
				return err
			}
			if err := cb(v); err != nil {
				guard.Release()
				return err
			}
			offset += consumed
		}
		next := header.NextBlkno
		guard.Release()
		blkno = next
	}
	return nil
}
