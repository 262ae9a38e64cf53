package bm25idx

import "sort"

// PostingCursor is a stateful, forward-only iterator over one term's
// postings in the sealed segment: it advances block by block, consulting each block's skip-info entry for its block-max
// score before ever decoding the block's doc-ids, and transparently
// switches into the term's inline trailing partial block once the last
// full block is exhausted.
type PostingCursor struct {
	pm PageManager

	blockDecode     DeltaBitpackDecode
	blockDataReader *BlockDataReader
	blockPageID     uint32
	pageOffset      uint32

	skipInfoPageID BlockNumber
	skipInfoOffset uint32
	decodeOffset   uint32
	curSkipInfo    SkipBlock
	blockDecoded   bool
	remainBlockCnt uint32

	unfulledDocID      []DocID
	unfulledFreq       []uint32
	unfulledSkipBlock  SkipBlock
	unfulledOffset     uint32
}

// unfulledOffsetNone is the sentinel meaning "not yet positioned within
// the unfulled tail", matching the Rust cursor's u32::MAX.
const unfulledOffsetNone uint32 = 0xFFFFFFFF

// NewPostingCursor opens a cursor over the term named by info.
func NewPostingCursor(pm PageManager, info PostingTermInfo) (*PostingCursor, error) {
	guard, err := pm.PageRead(info.MetaBlkno)
	if err != nil {
		return nil, err
	}
	meta := DecodeTermMeta(guard.Data())
	guard.Release()

	var blockDataReader *BlockDataReader
	if meta.BlockDataBlkno != InvalidBlockNumber {
		blockDataReader, err = OpenBlockDataReader(pm, meta.BlockDataBlkno)
		if err != nil {
			return nil, err
		}
	}

	c := &PostingCursor{
		pm:                pm,
		blockDataReader:   blockDataReader,
		skipInfoPageID:    meta.SkipInfoBlkno,
		remainBlockCnt:    meta.BlockCount,
		unfulledDocID:     append([]DocID(nil), meta.UnfulledDocID[:meta.UnfulledDocCnt]...),
		unfulledFreq:      append([]uint32(nil), meta.UnfulledFreq[:meta.UnfulledDocCnt]...),
		unfulledSkipBlock: meta.UnfulledSkipBlock,
		unfulledOffset:    unfulledOffsetNone,
	}
	if !c.completed() {
		c.updateSkipInfo()
	}
	return c, nil
}

func (c *PostingCursor) isInUnfulledBlock() bool {
	return len(c.unfulledDocID) > 0 && c.remainBlockCnt <= 1
}

func (c *PostingCursor) completed() bool { return c.remainBlockCnt == 0 }

func (c *PostingCursor) unfulledDocCnt() uint32 { return uint32(len(c.unfulledDocID)) }

func (c *PostingCursor) updateSkipInfo() {
	if c.isInUnfulledBlock() {
		c.curSkipInfo = c.unfulledSkipBlock
		return
	}
	guard, err := c.pm.PageRead(c.skipInfoPageID)
	if err != nil {
		return
	}
	buf := Payload(guard.Data())[c.skipInfoOffset : c.skipInfoOffset+SkipBlockSize]
	c.curSkipInfo = DecodeSkipBlock(buf)
	guard.Release()
}

// NextBlock advances past the current block, returning false once the
// term's postings are exhausted.
func (c *PostingCursor) NextBlock() bool {
	c.remainBlockCnt--
	c.blockDecoded = false
	if c.completed() {
		return false
	}
	c.decodeOffset = uint32(c.curSkipInfo.LastDoc)

	if !c.isInUnfulledBlock() {
		c.pageOffset += uint32(c.curSkipInfo.Size)
		c.skipInfoOffset += SkipBlockSize
		if c.skipInfoOffset+SkipBlockSize > PayloadSize(c.pm.PageSize()) {
			guard, err := c.pm.PageRead(c.skipInfoPageID)
			if err == nil {
				header := DecodeHeader(guard.Data())
				c.skipInfoPageID = header.NextBlkno
				guard.Release()
			}
			c.skipInfoOffset = 0
		}
	}
	c.updateSkipInfo()

	if !c.isInUnfulledBlock() && c.curSkipInfo.Flag.Contains(SkipBlockPageChanged) {
		c.blockPageID++
		c.pageOffset = 0
	}
	return true
}

// NextDoc advances within the current (already decoded) block, returning
// false once the block is exhausted.
func (c *PostingCursor) NextDoc() bool {
	if c.isInUnfulledBlock() {
		c.unfulledOffset++
		if c.unfulledOffset == c.unfulledDocCnt() {
			return false
		}
		return true
	}
	return c.blockDecode.Next()
}

// NextWithAutoDecode advances to the next doc, crossing into the next
// block (and decoding it) if the current one is exhausted.
func (c *PostingCursor) NextWithAutoDecode() bool {
	if c.completed() {
		return false
	}
	if c.NextDoc() {
		return true
	}
	if c.NextBlock() {
		c.DecodeBlock()
		return true
	}
	return false
}

// ShallowSeek advances block-by-block (without decoding) until the
// current block's last doc-id is >= docid, or the cursor is exhausted.
func (c *PostingCursor) ShallowSeek(docid DocID) bool {
	if c.completed() {
		return false
	}
	for c.LastDocInBlock() < docid {
		if !c.NextBlock() {
			return false
		}
	}
	return true
}

// Seek advances to the first doc-id >= docid, decoding blocks as
// needed, and returns it (or TerminatedDoc if none remains).
func (c *PostingCursor) Seek(docid DocID) DocID {
	if c.completed() {
		c.unfulledOffset = c.unfulledDocCnt()
		return TerminatedDoc
	}
	if !c.ShallowSeek(docid) {
		return TerminatedDoc
	}
	if !c.blockDecoded {
		c.DecodeBlock()
	}
	if c.isInUnfulledBlock() {
		c.unfulledOffset = uint32(sort.Search(len(c.unfulledDocID), func(i int) bool {
			return c.unfulledDocID[i] >= docid
		}))
	} else {
		c.blockDecode.Seek(uint32(docid))
	}
	return c.DocID()
}

// DecodeBlock materializes the current block's postings, a no-op if
// already decoded.
func (c *PostingCursor) DecodeBlock() {
	if c.blockDecoded {
		return
	}
	c.blockDecoded = true
	if c.isInUnfulledBlock() {
		c.unfulledOffset = 0
		return
	}

	blkno, err := c.blockDataReader.GetBlockID(c.blockPageID)
	if err != nil {
		return
	}
	guard, err := c.pm.PageRead(blkno)
	if err != nil {
		return
	}
	data := Payload(guard.Data())[c.pageOffset : c.pageOffset+uint32(c.curSkipInfo.Size)]
	c.blockDecode.Decode(data, c.decodeOffset)
	guard.Release()
}

// DocID returns the doc-id at the cursor's current position, or
// TerminatedDoc if exhausted.
func (c *PostingCursor) DocID() DocID {
	if c.completed() {
		return TerminatedDoc
	}
	if c.isInUnfulledBlock() && c.unfulledOffset != unfulledOffsetNone {
		return c.unfulledDocID[c.unfulledOffset]
	}
	return DocID(c.blockDecode.DocID())
}

// Freq returns the term frequency at the cursor's current position.
func (c *PostingCursor) Freq() uint32 {
	if c.isInUnfulledBlock() {
		return c.unfulledFreq[c.unfulledOffset]
	}
	return c.blockDecode.Freq()
}

// BlockMaxScore returns weight's score upper bound over the current
// block, without decoding it.
func (c *PostingCursor) BlockMaxScore(weight Bm25Weight) float32 {
	if c.completed() {
		return 0
	}
	return weight.Score(idToFieldNorm(c.curSkipInfo.BlockwandFieldnormID), c.curSkipInfo.BlockwandTF)
}

// LastDocInBlock returns the current block's highest doc-id.
func (c *PostingCursor) LastDocInBlock() DocID {
	if c.completed() {
		return TerminatedDoc
	}
	return c.curSkipInfo.LastDoc
}

// Completed reports whether the cursor has no more postings.
func (c *PostingCursor) Completed() bool { return c.completed() }
