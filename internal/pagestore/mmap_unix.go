//go:build unix

package pagestore

import "golang.org/x/sys/unix"

// mapSegment maps the first length bytes of fd into memory.
func mapSegment(fd int, length int, writable bool) (*mmapRegion, error) {
	if length <= 0 {
		return nil, mmapError("invalid size")
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(fd, 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, mmapError(err.Error())
	}

	return &mmapRegion{data: data, fd: fd, size: int64(length), writable: writable}, nil
}

// Close unmaps the region.
func (m *mmapRegion) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	m.size = 0
	return err
}
