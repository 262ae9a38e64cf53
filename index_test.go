package bm25idx_test

import (
	"testing"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/config"
)

func TestIndexBuildAndQuery(t *testing.T) {
	pm := openManager(t)

	docs := []bm25idx.BuildDoc{
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 1, Count: 3}, {Term: 2, Count: 1}}, DocLen: 4}, Locator: 100},
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 1, Count: 1}}, DocLen: 1}, Locator: 200},
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 2, Count: 5}}, DocLen: 5}, Locator: 300},
	}
	idx, err := bm25idx.Build(pm, config.Default(), docs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Query([]bm25idx.QueryTerm{{Term: 1, Boost: 1}}, 10, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query(term 1) returned %d results, want 2", len(results))
	}
	// Doc locator 100 has the higher term-1 frequency (3 vs 1) and should
	// outscore doc locator 200.
	if results[0].Locator != 100 {
		t.Errorf("top result locator = %d, want 100", results[0].Locator)
	}

	none, err := idx.Query([]bm25idx.QueryTerm{{Term: 99, Boost: 1}}, 10, nil)
	if err != nil {
		t.Fatalf("Query(unknown term) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Query(unknown term) = %v, want empty", none)
	}
}

func TestIndexInsertTriggersSealAtThreshold(t *testing.T) {
	pm := openManager(t)
	opts := config.Default()
	opts.GrowingSegmentMaxPageCount = 1

	idx, err := bm25idx.Create(pm, opts)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	v := bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 0, Count: 1}}, DocLen: 1}
	for i := 0; i < 4000; i++ {
		if err := idx.Insert(v, bm25idx.ExternalLocator(i)); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	results, err := idx.Query([]bm25idx.QueryTerm{{Term: 0, Boost: 1}}, 5, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Query() returned no results after inserts crossed the seal threshold")
	}
}

func TestIndexBulkDeleteHidesUnreachableDocs(t *testing.T) {
	pm := openManager(t)

	docs := []bm25idx.BuildDoc{
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 7, Count: 1}}, DocLen: 1}, Locator: 1},
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 7, Count: 1}}, DocLen: 1}, Locator: 2},
	}
	idx, err := bm25idx.Build(pm, config.Default(), docs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	reachable := map[bm25idx.ExternalLocator]bool{1: true, 2: false}
	removed, err := idx.BulkDelete(func(loc bm25idx.ExternalLocator) bool { return reachable[loc] })
	if err != nil {
		t.Fatalf("BulkDelete() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("BulkDelete() removed = %d, want 1", removed)
	}

	results, err := idx.Query([]bm25idx.QueryTerm{{Term: 7, Boost: 1}}, 10, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 || results[0].Locator != 1 {
		t.Errorf("Query() after BulkDelete() = %+v, want only locator 1", results)
	}
}

func TestIndexQueryHonorsTupleChecker(t *testing.T) {
	pm := openManager(t)
	docs := []bm25idx.BuildDoc{
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 3, Count: 1}}, DocLen: 1}, Locator: 10},
		{Vector: bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 3, Count: 1}}, DocLen: 1}, Locator: 20},
	}
	idx, err := bm25idx.Build(pm, config.Default(), docs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Query([]bm25idx.QueryTerm{{Term: 3, Boost: 1}}, 10, func(doc bm25idx.DocID) bool {
		return doc == 0
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 || results[0].Locator != 10 {
		t.Errorf("Query() with TupleChecker = %+v, want only locator 10", results)
	}
}

func TestIndexOpenReopensExistingMeta(t *testing.T) {
	pm := openManager(t)
	idx, err := bm25idx.Create(pm, config.Default())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	v := bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 5, Count: 1}}, DocLen: 1}
	if err := idx.Insert(v, 42); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	reopened, err := bm25idx.Open(pm, idx.MetaBlock(), config.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := reopened.Insert(bm25idx.Vector{Postings: []bm25idx.Posting{{Term: 5, Count: 1}}, DocLen: 1}, 43); err != nil {
		t.Fatalf("Insert() on reopened index error = %v", err)
	}
}
