package bm25idx

import (
	"container/heap"
	"math"
	"sort"
)

// ScoredDoc is one query result: a doc-id and the score it earned.
type ScoredDoc struct {
	Doc   DocID
	Score float32
}

// scoredHeap is a min-heap over ScoredDoc by Score, the backing store
// for TopKComputer's bounded retention.
type scoredHeap []ScoredDoc

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredDoc)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopKComputer retains the k highest-scoring documents seen across a
// sequence of Insert calls, exposing a monotonically non-decreasing
// Threshold once full: the pruning bound the block-max WAND scorer uses
// to skip blocks and terms that cannot possibly make the result set.
type TopKComputer struct {
	k int
	h scoredHeap
}

// NewTopKComputer returns a computer retaining the top k results.
func NewTopKComputer(k int) *TopKComputer {
	if k < 0 {
		k = 0
	}
	return &TopKComputer{k: k}
}

// Insert offers (doc, score) for inclusion in the result set.
func (t *TopKComputer) Insert(doc DocID, score float32) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, ScoredDoc{Doc: doc, Score: score})
		return
	}
	if score > t.h[0].Score {
		t.h[0] = ScoredDoc{Doc: doc, Score: score}
		heap.Fix(&t.h, 0)
	}
}

// Threshold returns the score a new candidate must exceed to possibly
// enter the result set: the current lowest retained score once the
// computer holds k results, or the smallest possible score otherwise.
func (t *TopKComputer) Threshold() float32 {
	if len(t.h) < t.k {
		return float32(math.Inf(-1))
	}
	return t.h[0].Score
}

// Len reports how many results are currently retained.
func (t *TopKComputer) Len() int { return len(t.h) }

// Results drains the computer, returning its retained documents ordered
// by descending score, ties broken by ascending doc-id for determinism.
func (t *TopKComputer) Results() []ScoredDoc {
	out := append([]ScoredDoc(nil), t.h...)
	t.h = nil
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Doc < out[j].Doc
	})
	return out
}
