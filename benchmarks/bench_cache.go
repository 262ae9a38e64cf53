// Package benchmarks compares the core's block-max WAND query path
// against naive-scan and postings-only baselines built on the rest of
// this module's dependency stack, so a reader can see what the
// block-max skip structure actually buys over a linear scan.
//
// Every baseline is built from the same deterministic synthetic corpus;
// each built store is cached per process under its own key, with the
// on-disk stores kept under testdata/benchdb.
package benchmarks

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/config"
	"github.com/vela-storage/bm25idx/fspage"

	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
	bolt "go.etcd.io/bbolt"
)

const benchCacheDir = "testdata/benchdb"

const (
	vocabSize     = 50_000
	docsPerCorpus = 200_000
	termsPerDoc   = 24
	queryTerms    = 6
	topK          = 10
)

var (
	cacheMu     sync.Mutex
	bm25Indexes = make(map[string]*cachedBM25)
	boltDBs     = make(map[string]*bolt.DB)
	rocksDBs    = make(map[string]*gorocksdb.DB)
	mdbxEnvs    = make(map[string]*mdbxgo.Env)
	corpusCache = make(map[string][]syntheticDoc)
)

type syntheticDoc struct {
	terms  []bm25idx.Posting
	docLen uint32
}

type cachedBM25 struct {
	pm  *fspage.Manager
	idx *bm25idx.Index
}

// syntheticCorpus generates a deterministic Zipf-distributed corpus: a
// handful of terms appear in most documents (the case block-max WAND's
// pivot selection is built to prune), the rest are long-tail.
func syntheticCorpus(key string, numDocs int) []syntheticDoc {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if docs, ok := corpusCache[key]; ok {
		return docs
	}

	rng := rand.New(rand.NewSource(1))
	zipf := rand.NewZipf(rng, 1.2, 1, vocabSize-1)

	docs := make([]syntheticDoc, numDocs)
	for i := range docs {
		seen := make(map[bm25idx.TermID]uint32, termsPerDoc)
		for j := 0; j < termsPerDoc; j++ {
			term := bm25idx.TermID(zipf.Uint64())
			seen[term]++
		}
		postings := make([]bm25idx.Posting, 0, len(seen))
		var docLen uint32
		for term, freq := range seen {
			postings = append(postings, bm25idx.Posting{Term: term, Count: freq})
			docLen += freq
		}
		sort.Slice(postings, func(a, b int) bool { return postings[a].Term < postings[b].Term })
		docs[i] = syntheticDoc{terms: postings, docLen: docLen}
	}
	corpusCache[key] = docs
	return docs
}

func sampleQueryTerms(rng *rand.Rand) []bm25idx.QueryTerm {
	out := make([]bm25idx.QueryTerm, queryTerms)
	for i := range out {
		out[i] = bm25idx.QueryTerm{Term: bm25idx.TermID(rng.Intn(vocabSize)), Boost: 1}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// getCachedBM25Index builds (or reopens the in-memory handle for) a
// bm25idx.Index over the synthetic corpus, backed by fspage.
func getCachedBM25Index(b *testing.B, numDocs int) (*bm25idx.Index, []syntheticDoc) {
	cacheMu.Lock()
	key := fmt.Sprintf("bm25_%d", numDocs)
	if c, ok := bm25Indexes[key]; ok {
		cacheMu.Unlock()
		return c.idx, corpusCache[key]
	}
	cacheMu.Unlock()

	docs := syntheticCorpus(key, numDocs)

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, fmt.Sprintf("%s.bm25", key))

	pm, err := fspage.Open(path, fspage.DefaultPageSize)
	if err != nil {
		b.Fatal(err)
	}

	buildDocs := make([]bm25idx.BuildDoc, numDocs)
	for i, d := range docs {
		buildDocs[i] = bm25idx.BuildDoc{
			Vector:  bm25idx.Vector{Postings: d.terms, DocLen: d.docLen},
			Locator: bm25idx.ExternalLocator(uint64(i)),
		}
	}

	idx, err := bm25idx.Build(pm, config.Default(), buildDocs)
	if err != nil {
		b.Fatal(err)
	}

	cacheMu.Lock()
	bm25Indexes[key] = &cachedBM25{pm: pm, idx: idx}
	cacheMu.Unlock()
	return idx, docs
}

// getCachedBoltNaiveDB stores each document's term-frequency map as a
// fixed binary encoding in a bbolt bucket, keyed by doc-id; queries
// scan every document and score it in Go, the no-index baseline.
func getCachedBoltNaiveDB(b *testing.B, numDocs int) (*bolt.DB, []syntheticDoc) {
	cacheMu.Lock()
	key := fmt.Sprintf("bolt_%d", numDocs)
	if db, ok := boltDBs[key]; ok {
		cacheMu.Unlock()
		return db, corpusCache[key]
	}
	cacheMu.Unlock()

	docs := syntheticCorpus(key, numDocs)
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, fmt.Sprintf("%s.bolt.db", key))
	existed := fileExists(path)

	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		b.Fatal(err)
	}

	if !existed {
		err = db.Update(func(tx *bolt.Tx) error {
			bkt, err := tx.CreateBucketIfNotExists([]byte("docs"))
			if err != nil {
				return err
			}
			for i, d := range docs {
				k := make([]byte, 8)
				binary.BigEndian.PutUint64(k, uint64(i))
				if err := bkt.Put(k, encodeDocTerms(d)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}

	cacheMu.Lock()
	boltDBs[key] = db
	cacheMu.Unlock()
	return db, docs
}

// getCachedRocksNaiveDB is the same naive full-scan baseline backed by
// RocksDB instead of bbolt, to compare against a log-structured store.
func getCachedRocksNaiveDB(b *testing.B, numDocs int) (*gorocksdb.DB, []syntheticDoc) {
	cacheMu.Lock()
	key := fmt.Sprintf("rocks_%d", numDocs)
	if db, ok := rocksDBs[key]; ok {
		cacheMu.Unlock()
		return db, corpusCache[key]
	}
	cacheMu.Unlock()

	docs := syntheticCorpus(key, numDocs)
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, fmt.Sprintf("%s.rocks.db", key))
	existed := fileExists(path)

	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		b.Fatal(err)
	}

	if !existed {
		wo := gorocksdb.NewDefaultWriteOptions()
		defer wo.Destroy()
		batch := gorocksdb.NewWriteBatch()
		for i, d := range docs {
			k := make([]byte, 8)
			binary.BigEndian.PutUint64(k, uint64(i))
			batch.Put(k, encodeDocTerms(d))
			if (i+1)%50_000 == 0 {
				if err := db.Write(wo, batch); err != nil {
					b.Fatal(err)
				}
				batch = gorocksdb.NewWriteBatch()
			}
		}
		if err := db.Write(wo, batch); err != nil {
			b.Fatal(err)
		}
	}

	cacheMu.Lock()
	rocksDBs[key] = db
	cacheMu.Unlock()
	return db, docs
}

// getCachedMdbxPostings stores a term -> doc-id dupsort posting list per
// term with no BM25 bookkeeping at all, the cheapest possible inverted
// index (the benchmark only walks each queried term's list, no top-k
// scoring), to show the floor a
// pure postings lookup gives without block-max pruning or ranking.
func getCachedMdbxPostings(b *testing.B, numDocs int) (*mdbxgo.Env, []syntheticDoc) {
	cacheMu.Lock()
	key := fmt.Sprintf("mdbx_%d", numDocs)
	if env, ok := mdbxEnvs[key]; ok {
		cacheMu.Unlock()
		return env, corpusCache[key]
	}
	cacheMu.Unlock()

	docs := syntheticCorpus(key, numDocs)
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, fmt.Sprintf("%s_mdbx.db", key))
	existed := fileExists(path)

	env, err := mdbxgo.NewEnv(mdbxgo.Label("bm25bench"))
	if err != nil {
		b.Fatal(err)
	}
	if err := env.SetOption(mdbxgo.OptMaxDB, 4); err != nil {
		b.Fatal(err)
	}
	if err := env.SetGeometry(-1, -1, 1<<32, -1, -1, 4096); err != nil {
		b.Fatal(err)
	}
	if err := env.Open(path, mdbxgo.NoSubdir|mdbxgo.NoMetaSync|mdbxgo.WriteMap, 0644); err != nil {
		b.Fatal(err)
	}

	if !existed {
		txn, err := env.BeginTxn(nil, 0)
		if err != nil {
			b.Fatal(err)
		}
		dbi, err := txn.OpenDBI("postings", mdbxgo.Create|mdbxgo.DupSort, nil, nil)
		if err != nil {
			b.Fatal(err)
		}
		termKey := make([]byte, 4)
		docVal := make([]byte, 4)
		for i, d := range docs {
			for _, p := range d.terms {
				binary.BigEndian.PutUint32(termKey, uint32(p.Term))
				binary.BigEndian.PutUint32(docVal, uint32(i))
				if err := txn.Put(dbi, termKey, docVal, mdbxgo.Upsert); err != nil {
					b.Fatal(err)
				}
			}
			if (i+1)%50_000 == 0 {
				if _, err := txn.Commit(); err != nil {
					b.Fatal(err)
				}
				txn, err = env.BeginTxn(nil, 0)
				if err != nil {
					b.Fatal(err)
				}
			}
		}
		if _, err := txn.Commit(); err != nil {
			b.Fatal(err)
		}
	}

	cacheMu.Lock()
	mdbxEnvs[key] = env
	cacheMu.Unlock()
	return env, docs
}

// encodeDocTerms packs a document's posting list as [doc_len:4]
// ([term:4][freq:4])*, enough for the naive baselines to re-derive term
// frequencies without needing the index's own on-disk format.
func encodeDocTerms(d syntheticDoc) []byte {
	buf := make([]byte, 4+len(d.terms)*8)
	binary.BigEndian.PutUint32(buf, d.docLen)
	for i, p := range d.terms {
		off := 4 + i*8
		binary.BigEndian.PutUint32(buf[off:], uint32(p.Term))
		binary.BigEndian.PutUint32(buf[off+4:], p.Count)
	}
	return buf
}

func decodeDocTerms(buf []byte) (uint32, map[bm25idx.TermID]uint32) {
	docLen := binary.BigEndian.Uint32(buf)
	n := (len(buf) - 4) / 8
	terms := make(map[bm25idx.TermID]uint32, n)
	for i := 0; i < n; i++ {
		off := 4 + i*8
		term := bm25idx.TermID(binary.BigEndian.Uint32(buf[off:]))
		freq := binary.BigEndian.Uint32(buf[off+4:])
		terms[term] = freq
	}
	return docLen, terms
}

// BenchmarkQuery_BM25Index runs the block-max WAND top-k path over the
// cached index.
func BenchmarkQuery_BM25Index(b *testing.B) {
	idx, _ := getCachedBM25Index(b, docsPerCorpus)
	rng := rand.New(rand.NewSource(2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := sampleQueryTerms(rng)
		if _, err := idx.Query(terms, topK, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQuery_BoltNaiveScan scores every document in the bbolt
// baseline on every query, the cost a database would pay doing BM25
// ranking without a dedicated access method.
func BenchmarkQuery_BoltNaiveScan(b *testing.B) {
	db, _ := getCachedBoltNaiveDB(b, docsPerCorpus)
	rng := rand.New(rand.NewSource(2))
	weight := bm25idx.NewBm25Weight(1, uint32(docsPerCorpus), uint32(docsPerCorpus/10), termsPerDoc, bm25idx.DefaultK1, bm25idx.DefaultB)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := sampleQueryTerms(rng)
		wanted := make(map[bm25idx.TermID]bool, len(terms))
		for _, t := range terms {
			wanted[t.Term] = true
		}
		err := db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket([]byte("docs")).Cursor()
			var best float32
			for k, v := c.First(); k != nil; k, v = c.Next() {
				docLen, docTerms := decodeDocTerms(v)
				var score float32
				for term, freq := range docTerms {
					if wanted[term] {
						score += weight.Score(float32(docLen), freq)
					}
				}
				if score > best {
					best = score
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQuery_RocksNaiveScan mirrors BenchmarkQuery_BoltNaiveScan
// against a RocksDB-backed corpus.
func BenchmarkQuery_RocksNaiveScan(b *testing.B) {
	db, _ := getCachedRocksNaiveDB(b, docsPerCorpus)
	rng := rand.New(rand.NewSource(2))
	weight := bm25idx.NewBm25Weight(1, uint32(docsPerCorpus), uint32(docsPerCorpus/10), termsPerDoc, bm25idx.DefaultK1, bm25idx.DefaultB)
	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := sampleQueryTerms(rng)
		wanted := make(map[bm25idx.TermID]bool, len(terms))
		for _, t := range terms {
			wanted[t.Term] = true
		}
		it := db.NewIterator(ro)
		var best float32
		for it.SeekToFirst(); it.Valid(); it.Next() {
			docLen, docTerms := decodeDocTerms(it.Value().Data())
			var score float32
			for term, freq := range docTerms {
				if wanted[term] {
					score += weight.Score(float32(docLen), freq)
				}
			}
			if score > best {
				best = score
			}
		}
		it.Close()
	}
}

// BenchmarkQuery_MdbxPostingsOnly measures the cost of resolving every
// query term's posting list through a dupsort cursor with no scoring
// at all, isolating postings-lookup cost from block-max pruning cost.
func BenchmarkQuery_MdbxPostingsOnly(b *testing.B) {
	env, _ := getCachedMdbxPostings(b, docsPerCorpus)
	rng := rand.New(rand.NewSource(2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := sampleQueryTerms(rng)
		txn, err := env.BeginTxn(nil, mdbxgo.TxnReadOnly)
		if err != nil {
			b.Fatal(err)
		}
		dbi, err := txn.OpenDBI("postings", 0, nil, nil)
		if err != nil {
			txn.Abort()
			b.Fatal(err)
		}
		cur, err := txn.OpenCursor(dbi)
		if err != nil {
			txn.Abort()
			b.Fatal(err)
		}
		var matched int
		termKey := make([]byte, 4)
		for _, t := range terms {
			binary.BigEndian.PutUint32(termKey, uint32(t.Term))
			for k, _, err := cur.Get(termKey, nil, mdbxgo.SetKey); k != nil && err == nil; k, _, err = cur.Get(nil, nil, mdbxgo.NextDup) {
				matched++
			}
		}
		cur.Close()
		txn.Abort()
	}
}
