package pagestore

import (
	"os"
	"testing"
)

func TestMapSegmentRoundTrip(t *testing.T) {
	path := t.TempDir() + "/segment"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if err := f.Truncate(4096); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}

	m, err := mapSegment(int(f.Fd()), 4096, true)
	if err != nil {
		t.Fatalf("mapSegment() error = %v", err)
	}
	data := m.Data()
	if len(data) != 4096 {
		t.Fatalf("Data() len = %d, want 4096", len(data))
	}
	data[0] = 0xAB
	data[4095] = 0xCD

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile() reopen error = %v", err)
	}
	defer reopened.Close()

	m2, err := mapSegment(int(reopened.Fd()), 4096, true)
	if err != nil {
		t.Fatalf("mapSegment() reopen error = %v", err)
	}
	defer m2.Close()
	if m2.Data()[0] != 0xAB || m2.Data()[4095] != 0xCD {
		t.Error("mapped bytes did not persist across close/reopen")
	}
}

func TestMapSegmentRejectsNonPositiveLength(t *testing.T) {
	if _, err := mapSegment(0, 0, true); err == nil {
		t.Error("mapSegment(length=0) = nil error, want an error")
	}
}
