package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/fspage"
)

func TestPrintTopTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dat")
	pm, err := fspage.Open(path, fspage.DefaultPageSize)
	if err != nil {
		t.Fatalf("fspage.Open() error = %v", err)
	}
	defer pm.Close()

	ts, err := bm25idx.CreateTermStatStore(pm)
	if err != nil {
		t.Fatalf("CreateTermStatStore() error = %v", err)
	}
	if err := ts.IncrDocFreq(0, 3); err != nil {
		t.Fatalf("IncrDocFreq() error = %v", err)
	}
	if err := ts.IncrDocFreq(1, 7); err != nil {
		t.Fatalf("IncrDocFreq() error = %v", err)
	}

	var buf bytes.Buffer
	printTopTerms(&buf, ts, 2)

	out := buf.String()
	if !strings.Contains(out, "term 0") || !strings.Contains(out, "df=3") {
		t.Errorf("printTopTerms() output missing term 0 df=3: %q", out)
	}
	if !strings.Contains(out, "term 1") || !strings.Contains(out, "df=7") {
		t.Errorf("printTopTerms() output missing term 1 df=7: %q", out)
	}
}

func TestPrintTopTermsCapsAtTwenty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dat")
	pm, err := fspage.Open(path, fspage.DefaultPageSize)
	if err != nil {
		t.Fatalf("fspage.Open() error = %v", err)
	}
	defer pm.Close()

	ts, err := bm25idx.CreateTermStatStore(pm)
	if err != nil {
		t.Fatalf("CreateTermStatStore() error = %v", err)
	}
	if err := ts.IncrDocFreq(25, 9); err != nil {
		t.Fatalf("IncrDocFreq() error = %v", err)
	}

	var buf bytes.Buffer
	printTopTerms(&buf, ts, 50)

	out := buf.String()
	if strings.Contains(out, "term 20 ") || strings.Contains(out, "term 25 ") {
		t.Errorf("printTopTerms() printed a term at or beyond the 20-term cap: %q", out)
	}
	if !strings.Contains(out, "first 20 term-ids") {
		t.Errorf("printTopTerms() header = %q, want it to report the 20-term cap", out)
	}
}
