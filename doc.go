// Package bm25idx is the core of a BM25 full-text search index access
// method: a paged storage substrate, a two-tier (growing/sealed) segment
// design, and a block-max WAND top-k scorer.
//
// The package owns no I/O of its own. It consumes a PageManager, a narrow
// interface modeling the host database's buffer manager (allocate,
// read-lock, write-lock, free fixed-size pages). The fspage subpackage
// provides a concrete, mmap-backed PageManager for tests, benchmarks, and
// the bm25ctl inspector; a real host integration would supply its own.
//
// Basic usage:
//
//	pm, _ := fspage.Open("/path/to/index", fspage.DefaultPageSize)
//	idx, _ := bm25idx.Build(pm, opts, docs)
//	locs, _ := idx.Query(query, 10, nil)
package bm25idx
