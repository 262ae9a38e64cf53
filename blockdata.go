package bm25idx

// BlockDataWriter appends variable-length, never-page-crossing byte
// blobs (one per skip-info entry) to a chain of pages addressed through
// the virtual page stream's inode tree: a term's block-data chain. Each
// call to WriteNoCross either lands in the current page or, if it
// wouldn't fit, starts a fresh one.
type BlockDataWriter struct {
	stream    *VPageStream
	pageIdx   uint32
	curBlkno  BlockNumber
	offset    uint32
	pageCap   uint32
}

// NewBlockDataWriter allocates a fresh, empty block-data chain.
func NewBlockDataWriter(pm PageManager) (*BlockDataWriter, error) {
	s, err := CreateVPageStream(pm, PageFlagBlockData, 1)
	if err != nil {
		return nil, err
	}
	return &BlockDataWriter{stream: s, pageCap: PayloadSize(pm.PageSize()), curBlkno: InvalidBlockNumber}, nil
}

// WriteNoCross writes data, advancing to a fresh page first if data
// would not otherwise fit in the current page. It returns whether the
// write landed on a new page (the skip-info entry's PAGE_CHANGED flag).
func (w *BlockDataWriter) WriteNoCross(pm PageManager, data []byte) (bool, error) {
	pageChanged := false
	if w.curBlkno == InvalidBlockNumber || w.offset+uint32(len(data)) > w.pageCap {
		blkno, err := w.stream.ResolvePage(w.pageIdx, true)
		if err != nil {
			return false, err
		}
		if w.curBlkno != InvalidBlockNumber {
			w.pageIdx++
			blkno, err = w.stream.ResolvePage(w.pageIdx, true)
			if err != nil {
				return false, err
			}
		}
		w.curBlkno = blkno
		w.offset = 0
		pageChanged = true
	}

	guard, err := pm.PageWrite(w.curBlkno)
	if err != nil {
		return false, err
	}
	copy(Payload(guard.Data())[w.offset:], data)
	guard.Release()
	w.offset += uint32(len(data))
	return pageChanged, nil
}

// Root returns the chain's root block number.
func (w *BlockDataWriter) Root() BlockNumber { return w.stream.Root() }

// BlockDataReader resolves a page index within a term's block-data
// chain to its block number, for the posting cursor to read blocks
// directly out of.
type BlockDataReader struct {
	stream *VPageStream
}

// OpenBlockDataReader opens an existing block-data chain rooted at
// blkno.
func OpenBlockDataReader(pm PageManager, blkno BlockNumber) (*BlockDataReader, error) {
	s, err := OpenVPageStream(pm, blkno, PageFlagBlockData, 1)
	if err != nil {
		return nil, err
	}
	return &BlockDataReader{stream: s}, nil
}

// GetBlockID returns the block number of the pageIdx'th page in the
// chain.
func (r *BlockDataReader) GetBlockID(pageIdx uint32) (BlockNumber, error) {
	return r.stream.ResolvePage(pageIdx, false)
}
