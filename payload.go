package bm25idx

import "encoding/binary"

// PayloadStore is the per-doc-id array of external locators: the
// opaque 64-bit handle the host uses to resolve a doc-id back to its
// own row, independent of how that row's vector was encoded.
type PayloadStore struct {
	stream *VPageStream
}

// CreatePayloadStore allocates a fresh, empty payload store.
func CreatePayloadStore(pm PageManager) (*PayloadStore, error) {
	s, err := CreateVPageStream(pm, PageFlagPayload, 8)
	if err != nil {
		return nil, err
	}
	return &PayloadStore{stream: s}, nil
}

// OpenPayloadStore opens an existing payload store rooted at blkno.
func OpenPayloadStore(pm PageManager, blkno BlockNumber) (*PayloadStore, error) {
	s, err := OpenVPageStream(pm, blkno, PageFlagPayload, 8)
	if err != nil {
		return nil, err
	}
	return &PayloadStore{stream: s}, nil
}

// Root returns the store's root block number.
func (p *PayloadStore) Root() BlockNumber { return p.stream.Root() }

// Append records doc's external locator. doc-ids are assigned in
// strictly increasing order by the inserter.
func (p *PayloadStore) Append(doc DocID, locator ExternalLocator) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(locator))
	return p.stream.WriteAt(uint32(doc), buf[:])
}

// Read returns the external locator recorded for doc.
func (p *PayloadStore) Read(doc DocID) (ExternalLocator, error) {
	var buf [8]byte
	if err := p.stream.ReadAt(uint32(doc), buf[:]); err != nil {
		return 0, err
	}
	return ExternalLocator(binary.LittleEndian.Uint64(buf[:])), nil
}
