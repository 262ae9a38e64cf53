package bm25idx

import "encoding/binary"

// PostingTermInfo is the dense, 4-byte-per-entry term-info array
// element: a term-id's only persistent handle, resolving straight to
// its meta page.
type PostingTermInfo struct {
	MetaBlkno BlockNumber
}

// EmptyPostingTermInfo is recorded for a term that had no live postings
// at seal time (an all-deleted or never-seen term-id).
func EmptyPostingTermInfo() PostingTermInfo {
	return PostingTermInfo{MetaBlkno: InvalidBlockNumber}
}

// IsEmpty reports whether this term has no postings.
func (t PostingTermInfo) IsEmpty() bool { return t.MetaBlkno == InvalidBlockNumber }

// TermInfoStore is the sealed segment's term-info array, a virtual page
// stream of 4-byte PostingTermInfo records indexed by term-id.
type TermInfoStore struct {
	stream *VPageStream
}

// CreateTermInfoStore allocates a fresh, empty term-info array.
func CreateTermInfoStore(pm PageManager) (*TermInfoStore, error) {
	s, err := CreateVPageStream(pm, PageFlagTermInfo, 4)
	if err != nil {
		return nil, err
	}
	return &TermInfoStore{stream: s}, nil
}

// OpenTermInfoStore opens an existing term-info array rooted at blkno.
func OpenTermInfoStore(pm PageManager, blkno BlockNumber) (*TermInfoStore, error) {
	s, err := OpenVPageStream(pm, blkno, PageFlagTermInfo, 4)
	if err != nil {
		return nil, err
	}
	return &TermInfoStore{stream: s}, nil
}

// Root returns the store's root block number.
func (s *TermInfoStore) Root() BlockNumber { return s.stream.Root() }

// Read returns the term-info for term, or EmptyPostingTermInfo if term
// is beyond termIDCnt.
func (s *TermInfoStore) Read(term TermID, termIDCnt uint32) (PostingTermInfo, error) {
	if uint32(term) >= termIDCnt {
		return EmptyPostingTermInfo(), nil
	}
	var buf [4]byte
	if err := s.stream.ReadAt(uint32(term), buf[:]); err != nil {
		return EmptyPostingTermInfo(), err
	}
	return PostingTermInfo{MetaBlkno: BlockNumber(binary.LittleEndian.Uint32(buf[:]))}, nil
}

// Write records term's term-info, growing the array as needed.
func (s *TermInfoStore) Write(term TermID, info PostingTermInfo) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(info.MetaBlkno))
	return s.stream.WriteAt(uint32(term), buf[:])
}

// SkipBlockFlags tags metadata about a single skip-info entry.
type SkipBlockFlags uint8

const (
	// SkipBlockUnfulled marks the synthetic skip entry standing in for a
	// term's trailing partial block, stored inline in its meta page
	// rather than in the skip-info/block-data chains.
	SkipBlockUnfulled SkipBlockFlags = 1 << iota
	// SkipBlockPageChanged marks that this block's data crossed onto a
	// new block-data page, so the reader must advance block_page_id.
	SkipBlockPageChanged
)

// Contains reports whether flags has f set.
func (flags SkipBlockFlags) Contains(f SkipBlockFlags) bool { return flags&f != 0 }

// SkipBlockSize is the fixed on-disk size of a SkipBlock entry.
const SkipBlockSize = 16

// SkipBlock is one entry in a term's skip-info chain: the block-max
// summary the WAND scorer consults without decoding the block's
// postings.
type SkipBlock struct {
	LastDoc               DocID
	BlockwandTF           uint32
	DocCnt                uint32
	Size                  uint16
	BlockwandFieldnormID  uint8
	Flag                  SkipBlockFlags
}

// EncodeSkipBlock writes s into the first SkipBlockSize bytes of buf.
func EncodeSkipBlock(buf []byte, s SkipBlock) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.LastDoc))
	binary.LittleEndian.PutUint32(buf[4:8], s.BlockwandTF)
	binary.LittleEndian.PutUint32(buf[8:12], s.DocCnt)
	binary.LittleEndian.PutUint16(buf[12:14], s.Size)
	buf[14] = s.BlockwandFieldnormID
	buf[15] = byte(s.Flag)
}

// DecodeSkipBlock reads a SkipBlock from the first SkipBlockSize bytes
// of buf.
func DecodeSkipBlock(buf []byte) SkipBlock {
	return SkipBlock{
		LastDoc:              DocID(binary.LittleEndian.Uint32(buf[0:4])),
		BlockwandTF:           binary.LittleEndian.Uint32(buf[4:8]),
		DocCnt:                binary.LittleEndian.Uint32(buf[8:12]),
		Size:                  binary.LittleEndian.Uint16(buf[12:14]),
		BlockwandFieldnormID:  buf[14],
		Flag:                  SkipBlockFlags(buf[15]),
	}
}

// unfulledCap is the maximum number of docs a term's trailing partial
// block can hold before it must be flushed as a full block instead.
const unfulledCap = CompressionBlockSize

// postingTermMetaHeaderSize is the size of PostingTermMetaData's fixed
// fields, ahead of its two 128-entry unfulled arrays.
const postingTermMetaHeaderSize = 4 /*skip_info_blkno*/ + 4 /*skip_info_last_blkno*/ +
	4 /*block_data_blkno*/ + 4 /*block_count*/ + 4 /*last_full_block_last_docid*/ +
	4 /*unfulled_doc_cnt*/ + 1 /*has_unfulled_skip_block*/ + 3 /*pad*/ + SkipBlockSize

// PostingTermMetaDataSize is the total fixed size of one term's meta
// page payload: header plus the two 128-entry unfulled arrays.
const PostingTermMetaDataSize = postingTermMetaHeaderSize + unfulledCap*4 + unfulledCap*4

// PostingTermMetaData is a term's single meta page: the roots of its
// skip-info and block-data chains, plus its trailing partial
// ("unfulled") block stored inline.
type PostingTermMetaData struct {
	SkipInfoBlkno           BlockNumber
	SkipInfoLastBlkno       BlockNumber
	BlockDataBlkno          BlockNumber
	BlockCount              uint32
	LastFullBlockLastDocID  DocID // 0 means no full block yet
	UnfulledDocCnt          uint32
	UnfulledDocID           [unfulledCap]DocID
	UnfulledFreq            [unfulledCap]uint32
	HasUnfulledSkipBlock    bool
	UnfulledSkipBlock       SkipBlock
}

// EncodeTermMeta serializes m into page's payload.
func EncodeTermMeta(page []byte, m PostingTermMetaData) {
	body := Payload(page)
	binary.LittleEndian.PutUint32(body[0:4], uint32(m.SkipInfoBlkno))
	binary.LittleEndian.PutUint32(body[4:8], uint32(m.SkipInfoLastBlkno))
	binary.LittleEndian.PutUint32(body[8:12], uint32(m.BlockDataBlkno))
	binary.LittleEndian.PutUint32(body[12:16], m.BlockCount)
	binary.LittleEndian.PutUint32(body[16:20], uint32(m.LastFullBlockLastDocID))
	binary.LittleEndian.PutUint32(body[20:24], m.UnfulledDocCnt)
	if m.HasUnfulledSkipBlock {
		body[24] = 1
	} else {
		body[24] = 0
	}
	EncodeSkipBlock(body[28:28+SkipBlockSize], m.UnfulledSkipBlock)

	off := postingTermMetaHeaderSize
	for i := 0; i < unfulledCap; i++ {
		binary.LittleEndian.PutUint32(body[off+i*4:off+i*4+4], uint32(m.UnfulledDocID[i]))
	}
	off += unfulledCap * 4
	for i := 0; i < unfulledCap; i++ {
		binary.LittleEndian.PutUint32(body[off+i*4:off+i*4+4], m.UnfulledFreq[i])
	}
}

// DecodeTermMeta reads a PostingTermMetaData from page's payload.
func DecodeTermMeta(page []byte) PostingTermMetaData {
	body := Payload(page)
	m := PostingTermMetaData{
		SkipInfoBlkno:          BlockNumber(binary.LittleEndian.Uint32(body[0:4])),
		SkipInfoLastBlkno:      BlockNumber(binary.LittleEndian.Uint32(body[4:8])),
		BlockDataBlkno:         BlockNumber(binary.LittleEndian.Uint32(body[8:12])),
		BlockCount:             binary.LittleEndian.Uint32(body[12:16]),
		LastFullBlockLastDocID: DocID(binary.LittleEndian.Uint32(body[16:20])),
		UnfulledDocCnt:         binary.LittleEndian.Uint32(body[20:24]),
		HasUnfulledSkipBlock:   body[24] != 0,
	}
	m.UnfulledSkipBlock = DecodeSkipBlock(body[28 : 28+SkipBlockSize])

	off := postingTermMetaHeaderSize
	for i := 0; i < unfulledCap; i++ {
		m.UnfulledDocID[i] = DocID(binary.LittleEndian.Uint32(body[off+i*4 : off+i*4+4]))
	}
	off += unfulledCap * 4
	for i := 0; i < unfulledCap; i++ {
		m.UnfulledFreq[i] = binary.LittleEndian.Uint32(body[off+i*4 : off+i*4+4])
	}
	return m
}
