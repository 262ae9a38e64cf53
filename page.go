package bm25idx

import "encoding/binary"

// BlockNumber addresses a fixed-size page. It is the core's unit of
// storage addressing, handed out and resolved by a PageManager.
type BlockNumber uint32

// InvalidBlockNumber is the sentinel meaning "no page" (e.g. an empty
// term's meta_blkno, or an unset chain terminator).
const InvalidBlockNumber BlockNumber = 0xFFFFFFFF

// PageFlag tags the structural role of a page.
type PageFlag uint8

const (
	PageFlagMeta PageFlag = iota + 1
	PageFlagFieldNorm
	PageFlagPayload
	PageFlagTermStatistic
	PageFlagTermInfo
	PageFlagTermMeta
	PageFlagSkipInfo
	PageFlagBlockData
	PageFlagGrowing
	PageFlagGrowingRedirect
	PageFlagDelete
	PageFlagVirtualInode
	PageFlagFree
)

// pageHeaderSize is the size in bytes of the fixed opaque page header
// every page carries ahead of its payload: a 1-byte flag, a 2-byte
// pd_lower, 1 byte of padding, and a 4-byte next-block pointer.
const pageHeaderSize = 8

// PageHeader is the common opaque header present on every page: a
// pd_lower/next_blkno/page_flag triple.
type PageHeader struct {
	Flag      PageFlag
	NextBlkno BlockNumber
	// PdLower is the byte offset of the first free byte of the payload
	// region (growing-segment slot tables and virtual-inode entry lists
	// grow it as entries are appended).
	PdLower uint16
}

// EncodeHeader writes h's fields into the first pageHeaderSize bytes of
// page (little-endian).
func EncodeHeader(page []byte, h PageHeader) {
	page[0] = byte(h.Flag)
	binary.LittleEndian.PutUint16(page[1:3], h.PdLower)
	binary.LittleEndian.PutUint32(page[4:8], uint32(h.NextBlkno))
}

// DecodeHeader reads a PageHeader from the first pageHeaderSize bytes of
// page.
func DecodeHeader(page []byte) PageHeader {
	return PageHeader{
		Flag:      PageFlag(page[0]),
		PdLower:   binary.LittleEndian.Uint16(page[1:3]),
		NextBlkno: BlockNumber(binary.LittleEndian.Uint32(page[4:8])),
	}
}

// Payload returns the payload region of page, after the opaque header.
func Payload(page []byte) []byte {
	return page[pageHeaderSize:]
}

// PayloadSize returns the usable payload bytes for a page of the given
// total size.
func PayloadSize(pageSize uint32) uint32 {
	return pageSize - pageHeaderSize
}

// InitPage zeroes the header of a freshly allocated page and sets its
// flag; NextBlkno starts at InvalidBlockNumber and PdLower at zero (no
// payload bytes used yet).
func InitPage(page []byte, flag PageFlag) {
	EncodeHeader(page, PageHeader{Flag: flag, NextBlkno: InvalidBlockNumber, PdLower: 0})
}
