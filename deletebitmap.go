package bm25idx

import (
	"encoding/binary"
	"errors"

	"github.com/vela-storage/bm25idx/internal/pagestore"
)

// DeleteBitmapStore is the per-doc-id tombstone bitmap: one bit per
// doc-id, set when BulkDelete marks a doc-id dead. It is built
// on the same virtual page stream substrate as the other per-doc arrays,
// one bit-packed uint64 word per record, materialized in memory as an
// internal/pagestore.Bitmap for fast lookups and lazily flushed a word
// at a time.
type DeleteBitmapStore struct {
	stream *VPageStream
	bitmap *pagestore.Bitmap
}

// CreateDeleteBitmapStore allocates a fresh, empty delete bitmap.
func CreateDeleteBitmapStore(pm PageManager) (*DeleteBitmapStore, error) {
	s, err := CreateVPageStream(pm, PageFlagDelete, 8)
	if err != nil {
		return nil, err
	}
	return &DeleteBitmapStore{stream: s, bitmap: pagestore.NewBitmap(0)}, nil
}

// OpenDeleteBitmapStore opens an existing delete bitmap rooted at blkno,
// hydrating docCnt bits of in-memory state from persisted page data.
func OpenDeleteBitmapStore(pm PageManager, blkno BlockNumber, docCnt uint32) (*DeleteBitmapStore, error) {
	s, err := OpenVPageStream(pm, blkno, PageFlagDelete, 8)
	if err != nil {
		return nil, err
	}
	d := &DeleteBitmapStore{stream: s, bitmap: pagestore.NewBitmap(docCnt)}

	nWords := (docCnt + 63) / 64
	words := make([]uint64, nWords)
	for i := uint32(0); i < nWords; i++ {
		var buf [8]byte
		if err := s.ReadAt(i, buf[:]); err != nil {
			if errors.Is(err, ErrExhausted) {
				continue
			}
			return nil, err
		}
		words[i] = binary.LittleEndian.Uint64(buf[:])
	}
	d.bitmap.LoadWords(words, docCnt)
	return d, nil
}

// Root returns the store's root block number.
func (d *DeleteBitmapStore) Root() BlockNumber { return d.stream.Root() }

// IsDeleted reports whether doc has been tombstoned.
func (d *DeleteBitmapStore) IsDeleted(doc DocID) bool {
	return d.bitmap.IsSet(uint32(doc))
}

// Delete tombstones doc and flushes the owning word to storage.
func (d *DeleteBitmapStore) Delete(doc DocID) error {
	d.bitmap.Extend(uint32(doc) + 1)
	d.bitmap.Set(uint32(doc))
	return d.flushWord(uint32(doc) / 64)
}

func (d *DeleteBitmapStore) flushWord(wordIdx uint32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], d.bitmap.Words()[wordIdx])
	return d.stream.WriteAt(wordIdx, buf[:])
}

// DeletedCount returns the number of tombstoned doc-ids.
func (d *DeleteBitmapStore) DeletedCount() uint32 {
	return d.bitmap.Count()
}
