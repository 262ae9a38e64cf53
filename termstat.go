package bm25idx

import (
	"encoding/binary"
	"errors"
)

// TermStatStore is the per-term-id array of document frequencies: how
// many inserted documents contain each term, the df input to idf().
// BulkDelete does not decrement it, so tombstoned documents still count.
type TermStatStore struct {
	stream *VPageStream
}

// CreateTermStatStore allocates a fresh, empty term-statistics store.
func CreateTermStatStore(pm PageManager) (*TermStatStore, error) {
	s, err := CreateVPageStream(pm, PageFlagTermStatistic, 4)
	if err != nil {
		return nil, err
	}
	return &TermStatStore{stream: s}, nil
}

// OpenTermStatStore opens an existing term-statistics store rooted at
// blkno.
func OpenTermStatStore(pm PageManager, blkno BlockNumber) (*TermStatStore, error) {
	s, err := OpenVPageStream(pm, blkno, PageFlagTermStatistic, 4)
	if err != nil {
		return nil, err
	}
	return &TermStatStore{stream: s}, nil
}

// Root returns the store's root block number.
func (t *TermStatStore) Root() BlockNumber { return t.stream.Root() }

// DocFreq returns the document frequency recorded for term.
func (t *TermStatStore) DocFreq(term TermID) (uint32, error) {
	var buf [4]byte
	if err := t.stream.ReadAt(uint32(term), buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// SetDocFreq overwrites the document frequency recorded for term.
func (t *TermStatStore) SetDocFreq(term TermID, df uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], df)
	return t.stream.WriteAt(uint32(term), buf[:])
}

// IncrDocFreq adds delta (Insert passes +1; a negative delta is clamped
// at zero) to term's recorded document frequency. A term seen for the first time
// reads back zero from an unwritten page.
func (t *TermStatStore) IncrDocFreq(term TermID, delta int64) error {
	cur, err := t.DocFreq(term)
	if err != nil && !errors.Is(err, ErrExhausted) {
		return err
	}
	next := int64(cur) + delta
	if next < 0 {
		next = 0
	}
	return t.SetDocFreq(term, uint32(next))
}
