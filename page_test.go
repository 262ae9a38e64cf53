package bm25idx

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	page := make([]byte, 64)
	h := PageHeader{Flag: PageFlagGrowing, NextBlkno: BlockNumber(42), PdLower: 17}
	EncodeHeader(page, h)

	got := DecodeHeader(page)
	if got != h {
		t.Fatalf("DecodeHeader(EncodeHeader(h)) = %+v, want %+v", got, h)
	}
}

func TestInitPage(t *testing.T) {
	page := make([]byte, 64)
	InitPage(page, PageFlagMeta)

	h := DecodeHeader(page)
	if h.Flag != PageFlagMeta {
		t.Errorf("Flag = %v, want PageFlagMeta", h.Flag)
	}
	if h.NextBlkno != InvalidBlockNumber {
		t.Errorf("NextBlkno = %v, want InvalidBlockNumber", h.NextBlkno)
	}
	if h.PdLower != 0 {
		t.Errorf("PdLower = %d, want 0", h.PdLower)
	}
}

func TestPayloadSize(t *testing.T) {
	if got := PayloadSize(8192); got != 8192-pageHeaderSize {
		t.Errorf("PayloadSize(8192) = %d, want %d", got, 8192-pageHeaderSize)
	}
}

func TestPayloadOffset(t *testing.T) {
	page := make([]byte, 32)
	for i := range page {
		page[i] = byte(i)
	}
	body := Payload(page)
	if len(body) != 32-pageHeaderSize {
		t.Fatalf("len(Payload(page)) = %d, want %d", len(body), 32-pageHeaderSize)
	}
	if body[0] != byte(pageHeaderSize) {
		t.Errorf("Payload(page)[0] = %d, want %d", body[0], pageHeaderSize)
	}
}
