package pagestore

import (
	"os"
	"strconv"
	"sync"
)

// DefaultSegmentPages is the default number of pages per mmap'd segment.
const DefaultSegmentPages = 1024

// DefaultMaxSegments bounds the total number of segments a Store may grow to.
const DefaultMaxSegments = 1 << 16

// Slot addresses a single fixed-size page within the store.
type Slot struct {
	Segment uint32
	Index   uint32
}

type segment struct {
	file *os.File
	mm   *mmapRegion
	path string
}

// Store is a growable, mmap-backed array of fixed-size pages, addressed by
// a flat block number. It backs the file-based PageManager: allocation is
// a free-space bitmap lookup, and reads/writes are slices into the mmap.
type Store struct {
	mu           sync.Mutex
	basePath     string
	pageSize     uint32
	segmentPages uint32
	segments     []*segment
	fsm          *Bitmap
}

// Open creates or reopens a page store at basePath. Segment files are named
// basePath, basePath.1, basePath.2, ...
func Open(basePath string, pageSize uint32) (*Store, error) {
	s := &Store{
		basePath:     basePath,
		pageSize:     pageSize,
		segmentPages: DefaultSegmentPages,
	}
	s.fsm = NewBitmap(0)
	if err := s.addSegment(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) addSegment() error {
	if len(s.segments) >= DefaultMaxSegments {
		return ErrStoreFull
	}

	idx := len(s.segments)
	path := s.basePath
	if idx > 0 {
		path = s.basePath + "." + strconv.Itoa(idx)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}

	size := int64(s.segmentPages) * int64(s.pageSize)
	if err := file.Truncate(size); err != nil {
		file.Close()
		return err
	}

	mm, err := mapSegment(int(file.Fd()), int(size), true)
	if err != nil {
		file.Close()
		return err
	}

	s.segments = append(s.segments, &segment{file: file, mm: mm, path: path})
	s.fsm.Extend(uint32(len(s.segments)) * s.segmentPages)
	return nil
}

// Close unmaps and closes every segment file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, seg := range s.segments {
		if err := seg.mm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := seg.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.segments = nil
	return firstErr
}

func (s *Store) blockBytes(block uint32) ([]byte, error) {
	segIdx := block / s.segmentPages
	if int(segIdx) >= len(s.segments) {
		return nil, ErrOutOfRange
	}
	off := int64(block%s.segmentPages) * int64(s.pageSize)
	data := s.segments[segIdx].mm.Data()
	return data[off : off+int64(s.pageSize)], nil
}

// Page returns the raw page bytes for block, growing the store if needed.
func (s *Store) Page(block uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for block/s.segmentPages >= uint32(len(s.segments)) {
		if err := s.addSegment(); err != nil {
			return nil, err
		}
	}
	return s.blockBytes(block)
}

// Alloc finds a free block number via the free-space map, marks it used,
// and returns its zeroed page bytes.
func (s *Store) Alloc() (uint32, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, ok := s.fsm.Allocate()
	if !ok {
		if err := s.addSegment(); err != nil {
			return 0, nil, err
		}
		block, ok = s.fsm.Allocate()
		if !ok {
			return 0, nil, ErrStoreFull
		}
	}
	data, err := s.blockBytes(block)
	if err != nil {
		return 0, nil, err
	}
	for i := range data {
		data[i] = 0
	}
	return block, data, nil
}

// Free returns a block number to the free-space map.
func (s *Store) Free(block uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fsm.Free(block)
}

// PageSize returns the configured fixed page size.
func (s *Store) PageSize() uint32 {
	return s.pageSize
}

type storeError string

func (e storeError) Error() string { return "pagestore: " + string(e) }

// ErrStoreFull is returned when the store cannot grow further.
const ErrStoreFull = storeError("store is full (max segments reached)")

// ErrOutOfRange is returned when a block number has no backing segment.
const ErrOutOfRange = storeError("block number out of range")
