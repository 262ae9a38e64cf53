package bm25idx

// LoserTree is the brute-force multi-term merge path: a tournament
// tree over every queried term's posting cursor, driven by
// BruteForceMerge. Index.Query does not use it: queries always run
// through BlockMaxWAND. Every posting of every term is visited and
// scored; there is no skipping.
//
// Internally this tracks the winner (lowest doc-id) at each node rather
// than the loser a classical loser tree records: the same tournament,
// inspected from the other side, and easier to follow by reading the
// code next to the algorithm's description.
type LoserTree struct {
	scorers []*termScorer
	size    int    // next power of two >= len(scorers)
	node    []int  // node[i] holds the winning leaf index of subtree i, 1-indexed internal+leaf array
	done    []bool // done[leaf] true once that scorer is exhausted
}

// NewLoserTree builds a tournament tree over scorers, each already
// positioned at its first posting (or exhausted).
func NewLoserTree(scorers []*termScorer) *LoserTree {
	size := 1
	for size < len(scorers) {
		size *= 2
	}
	t := &LoserTree{
		scorers: scorers,
		size:    size,
		node:    make([]int, 2*size),
		done:    make([]bool, len(scorers)),
	}
	for i := range scorers {
		t.done[i] = scorers[i].DocID() == TerminatedDoc
	}
	for i := 0; i < size; i++ {
		t.node[size+i] = i
	}
	for i := size - 1; i >= 1; i-- {
		t.node[i] = t.better(t.node[2*i], t.node[2*i+1])
	}
	return t
}

// better returns whichever of leaf a, b has the smaller doc-id (a
// padding or exhausted leaf always loses); leaf indices beyond the real
// scorer count are permanently exhausted padding.
func (t *LoserTree) better(a, b int) int {
	da := t.leafDocID(a)
	db := t.leafDocID(b)
	if da <= db {
		return a
	}
	return b
}

func (t *LoserTree) leafDocID(leaf int) DocID {
	if leaf >= len(t.scorers) || t.done[leaf] {
		return TerminatedDoc
	}
	return t.scorers[leaf].DocID()
}

// Top returns the doc-id currently at the root, or TerminatedDoc once
// every scorer is exhausted.
func (t *LoserTree) Top() DocID {
	return t.leafDocID(t.node[1])
}

// replay recomputes the path from leaf up to the root after leaf's
// doc-id has changed.
func (t *LoserTree) replay(leaf int) {
	i := (t.size + leaf) / 2
	for i >= 1 {
		t.node[i] = t.better(t.node[2*i], t.node[2*i+1])
		i /= 2
	}
}

// PopMatching drains every scorer currently positioned on Top()'s
// doc-id, summing their scores, advancing each past it, and returns the
// combined (doc, score). Callers should loop Top()/PopMatching until
// Top() is TerminatedDoc.
func (t *LoserTree) PopMatching(fieldNorm *FieldNormStore) (DocID, float32, error) {
	doc := t.Top()
	if doc == TerminatedDoc {
		return TerminatedDoc, 0, nil
	}
	var score float32
	for leaf := 0; leaf < len(t.scorers); leaf++ {
		if t.done[leaf] || t.scorers[leaf].DocID() != doc {
			continue
		}
		s, err := t.scorers[leaf].Score(fieldNorm)
		if err != nil {
			return TerminatedDoc, 0, err
		}
		score += s
		if !t.scorers[leaf].Advance() {
			t.done[leaf] = true
		}
		t.replay(leaf)
	}
	return doc, score, nil
}
