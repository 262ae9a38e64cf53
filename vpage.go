package bm25idx

import "encoding/binary"

// rootPointerHeaderSize is the size in bytes of the two extra pointers
// (to the indirect-1 and indirect-2 pages) carried in a stream's root
// page, ahead of its own direct pointer array.
const rootPointerHeaderSize = 8

// VPageStream is a virtual page stream: a fixed-record-size array
// addressed through a three-level inode tree
// (direct, indirect-1, indirect-2), the storage substrate underneath
// every growing per-doc/per-term array in the index (field-norms,
// payload locators, term statistics, the term-info array, delete
// bitmap words).
//
// The root page holds rootDirectCap direct data-page pointers plus the
// indirect-1 and indirect-2 pointers; a plain inode page (indirect-1,
// indirect-2, and the pages they chain to) holds ptrK = payload size/4
// pointers. Addressing escalates to the next level lazily, only once
// the previous level's capacity is exhausted, so small streams never
// pay for indirection they don't need.
type VPageStream struct {
	pm         PageManager
	dataFlag   PageFlag
	recordSize uint32
	root       BlockNumber

	rootDirectCap uint32
	ptrK          uint32
	recordsPerPg  uint32
}

// CreateVPageStream allocates a fresh, empty stream whose data pages are
// tagged dataFlag and whose records are recordSize bytes wide.
func CreateVPageStream(pm PageManager, dataFlag PageFlag, recordSize uint32) (*VPageStream, error) {
	blkno, guard, err := pm.PageAlloc(PageFlagVirtualInode)
	if err != nil {
		return nil, err
	}
	InitPage(guard.Data(), PageFlagVirtualInode)
	initVPageRoot(guard.Data())
	guard.Release()

	return newVPageStream(pm, dataFlag, recordSize, blkno), nil
}

// OpenVPageStream wraps an existing stream rooted at blkno.
func OpenVPageStream(pm PageManager, blkno BlockNumber, dataFlag PageFlag, recordSize uint32) (*VPageStream, error) {
	return newVPageStream(pm, dataFlag, recordSize, blkno), nil
}

func newVPageStream(pm PageManager, dataFlag PageFlag, recordSize uint32, root BlockNumber) *VPageStream {
	payload := PayloadSize(pm.PageSize())
	ptrK := payload / 4
	return &VPageStream{
		pm:            pm,
		dataFlag:      dataFlag,
		recordSize:    recordSize,
		root:          root,
		rootDirectCap: (payload - rootPointerHeaderSize) / 4,
		ptrK:          ptrK,
		recordsPerPg:  payload / recordSize,
	}
}

// Root returns the stream's root block number, to be persisted by the
// caller (typically into the meta page).
func (s *VPageStream) Root() BlockNumber { return s.root }

// initVPageRoot fills a freshly allocated root page's entire payload
// (the indirect-1/indirect-2 header pointers plus the direct pointer
// array that follows them) with InvalidBlockNumber. A page fresh off
// PageAlloc reads back as all zero bytes, which readPointer would
// otherwise decode as block 0 rather than "unset".
func initVPageRoot(page []byte) {
	fillInvalidPointers(Payload(page))
}

// initVPageInode fills a freshly allocated non-root inode page's entire
// payload (ptrK pointer slots, no header) with InvalidBlockNumber, for
// the same reason as initVPageRoot.
func initVPageInode(page []byte) {
	fillInvalidPointers(Payload(page))
}

// fillInvalidPointers sets every 4-byte slot in body to InvalidBlockNumber.
func fillInvalidPointers(body []byte) {
	for off := 0; off+4 <= len(body); off += 4 {
		binary.LittleEndian.PutUint32(body[off:off+4], uint32(InvalidBlockNumber))
	}
}

// pointerSlot returns the byte range of the nth pointer slot within a
// plain inode page's payload (the root's direct array is offset by
// rootPointerHeaderSize; a non-root inode page has no such offset).
func pointerSlot(base []byte, n uint32) []byte {
	return base[n*4 : n*4+4]
}

func readPointer(base []byte) BlockNumber {
	return BlockNumber(binary.LittleEndian.Uint32(base))
}

func writePointer(base []byte, v BlockNumber) {
	binary.LittleEndian.PutUint32(base, uint32(v))
}

// resolve locates the data page holding dataPageIdx, allocating
// intermediate inode pages and the data page itself when create is
// true and a pointer along the chain is unset.
func (s *VPageStream) resolve(dataPageIdx uint32, create bool) (BlockNumber, error) {
	if dataPageIdx < s.rootDirectCap {
		return s.followSlot(s.root, rootPointerHeaderSize+dataPageIdx*4, s.dataFlag, create)
	}
	idx1 := dataPageIdx - s.rootDirectCap
	ptrK2 := s.ptrK * s.ptrK

	if idx1 < ptrK2 {
		indirect1, err := s.followRootHeaderSlot(0, create)
		if err != nil || indirect1 == InvalidBlockNumber {
			return InvalidBlockNumber, err
		}
		l1slot := idx1 / s.ptrK
		l0slot := idx1 % s.ptrK
		directPg, err := s.followSlot(indirect1, l1slot*4, PageFlagVirtualInode, create)
		if err != nil || directPg == InvalidBlockNumber {
			return InvalidBlockNumber, err
		}
		return s.followSlot(directPg, l0slot*4, s.dataFlag, create)
	}

	idx2 := idx1 - ptrK2
	indirect2, err := s.followRootHeaderSlot(4, create)
	if err != nil || indirect2 == InvalidBlockNumber {
		return InvalidBlockNumber, err
	}
	l2slot := idx2 / ptrK2
	rem := idx2 % ptrK2
	l1slot := rem / s.ptrK
	l0slot := rem % s.ptrK

	indirect1Pg, err := s.followSlot(indirect2, l2slot*4, PageFlagVirtualInode, create)
	if err != nil || indirect1Pg == InvalidBlockNumber {
		return InvalidBlockNumber, err
	}
	directPg, err := s.followSlot(indirect1Pg, l1slot*4, PageFlagVirtualInode, create)
	if err != nil || directPg == InvalidBlockNumber {
		return InvalidBlockNumber, err
	}
	return s.followSlot(directPg, l0slot*4, s.dataFlag, create)
}

// followRootHeaderSlot resolves the root's indirect-1 (offset 0) or
// indirect-2 (offset 4) pointer, allocating a fresh inode page into it
// if create is true and it is unset.
func (s *VPageStream) followRootHeaderSlot(offset uint32, create bool) (BlockNumber, error) {
	guard, err := s.pm.PageRead(s.root)
	if err != nil {
		return InvalidBlockNumber, err
	}
	cur := readPointer(Payload(guard.Data())[offset : offset+4])
	guard.Release()

	if cur != InvalidBlockNumber || !create {
		return cur, nil
	}

	newBlk, ng, err := s.pm.PageAllocWithFSM(PageFlagVirtualInode)
	if err != nil {
		return InvalidBlockNumber, err
	}
	InitPage(ng.Data(), PageFlagVirtualInode)
	initVPageInode(ng.Data())
	ng.Release()

	wg, err := s.pm.PageWrite(s.root)
	if err != nil {
		return InvalidBlockNumber, err
	}
	writePointer(Payload(wg.Data())[offset:offset+4], newBlk)
	wg.Release()
	return newBlk, nil
}

// followSlot resolves the pointer at byte offset off within pageBlk's
// payload, allocating a fresh page tagged leafFlag into it if create is
// true and the slot is unset.
func (s *VPageStream) followSlot(pageBlk BlockNumber, off uint32, leafFlag PageFlag, create bool) (BlockNumber, error) {
	guard, err := s.pm.PageRead(pageBlk)
	if err != nil {
		return InvalidBlockNumber, err
	}
	cur := readPointer(Payload(guard.Data())[off : off+4])
	guard.Release()

	if cur != InvalidBlockNumber || !create {
		return cur, nil
	}

	newBlk, ng, err := s.pm.PageAllocWithFSM(leafFlag)
	if err != nil {
		return InvalidBlockNumber, err
	}
	InitPage(ng.Data(), leafFlag)
	if leafFlag == PageFlagVirtualInode {
		initVPageInode(ng.Data())
	}
	ng.Release()

	wg, err := s.pm.PageWrite(pageBlk)
	if err != nil {
		return InvalidBlockNumber, err
	}
	writePointer(Payload(wg.Data())[off:off+4], newBlk)
	wg.Release()
	return newBlk, nil
}

// WriteAt writes a recordSize-byte record at logical index, growing the
// inode tree and allocating a data page if this is the first write to
// its page.
func (s *VPageStream) WriteAt(index uint32, data []byte) error {
	if uint32(len(data)) != s.recordSize {
		return NewError(InputInvalid, "record size mismatch")
	}
	dataPageIdx := index / s.recordsPerPg
	offset := (index % s.recordsPerPg) * s.recordSize

	pageBlk, err := s.resolve(dataPageIdx, true)
	if err != nil {
		return err
	}
	guard, err := s.pm.PageWrite(pageBlk)
	if err != nil {
		return err
	}
	copy(Payload(guard.Data())[offset:offset+s.recordSize], data)
	guard.Release()
	return nil
}

// ReadAt reads the recordSize-byte record at logical index into buf.
// It returns ErrExhausted if index falls in a page never written.
func (s *VPageStream) ReadAt(index uint32, buf []byte) error {
	if uint32(len(buf)) != s.recordSize {
		return NewError(InputInvalid, "record size mismatch")
	}
	dataPageIdx := index / s.recordsPerPg
	offset := (index % s.recordsPerPg) * s.recordSize

	pageBlk, err := s.resolve(dataPageIdx, false)
	if err != nil {
		return err
	}
	if pageBlk == InvalidBlockNumber {
		return ErrExhausted
	}
	guard, err := s.pm.PageRead(pageBlk)
	if err != nil {
		return err
	}
	copy(buf, Payload(guard.Data())[offset:offset+s.recordSize])
	guard.Release()
	return nil
}

// Append is a convenience for the common case of writing the record for
// the next sequentially assigned index (a doc-id or term-id).
func (s *VPageStream) Append(index uint32, data []byte) error {
	return s.WriteAt(index, data)
}

// ResolvePage resolves the data page block number for the pageIdx'th
// page in the stream's chain (0-based), allocating it (and the inode
// pages leading to it) when create is true. Used by the block-data
// reader/writer, which addresses pages directly rather than through
// fixed-size records.
func (s *VPageStream) ResolvePage(pageIdx uint32, create bool) (BlockNumber, error) {
	return s.resolve(pageIdx, create)
}
