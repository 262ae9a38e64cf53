package bm25idx

import "sort"

// termScorer pairs a term's posting cursor with the BM25 weight to
// apply to it, the unit the WAND scorer and the loser-tree fallback
// both operate over.
type termScorer struct {
	cursor    *PostingCursor
	weight    Bm25Weight
	exhausted bool
}

// newTermScorer opens a cursor over info and positions it at its first
// posting.
func newTermScorer(pm PageManager, info PostingTermInfo, weight Bm25Weight) (*termScorer, error) {
	cursor, err := NewPostingCursor(pm, info)
	if err != nil {
		return nil, err
	}
	return &termScorer{cursor: cursor, weight: weight, exhausted: cursor.Completed()}, nil
}

// DocID returns the doc-id under the cursor, decoding its block on
// first access.
func (s *termScorer) DocID() DocID {
	if s.exhausted {
		return TerminatedDoc
	}
	s.cursor.DecodeBlock()
	return s.cursor.DocID()
}

// Score computes the actual BM25 contribution at the cursor's current
// position.
func (s *termScorer) Score(fieldNorm *FieldNormStore) (float32, error) {
	s.cursor.DecodeBlock()
	id, err := fieldNorm.Read(s.cursor.DocID())
	if err != nil {
		return 0, err
	}
	return s.weight.Score(idToFieldNorm(id), s.cursor.Freq()), nil
}

// BlockMaxScore returns the current block's score upper bound, without
// decoding it.
func (s *termScorer) BlockMaxScore() float32 {
	if s.exhausted {
		return 0
	}
	return s.cursor.BlockMaxScore(s.weight)
}

// MaxScore is the term's global score upper bound (over any doc-id),
// used to select the WAND pivot.
func (s *termScorer) MaxScore() float32 { return s.weight.MaxScore() }

// LastDocInBlock returns the current block's highest doc-id, without
// decoding it.
func (s *termScorer) LastDocInBlock() DocID {
	if s.exhausted {
		return TerminatedDoc
	}
	return s.cursor.LastDocInBlock()
}

// Advance moves past the current doc-id, returning false once the term
// is exhausted.
func (s *termScorer) Advance() bool {
	if s.exhausted {
		return false
	}
	if s.cursor.NextWithAutoDecode() {
		return true
	}
	s.exhausted = true
	return false
}

// NextBlock skips the remainder of the current block without decoding
// it, the block-max-too-low path.
func (s *termScorer) NextBlock() bool {
	if s.exhausted {
		return false
	}
	if s.cursor.NextBlock() {
		return true
	}
	s.exhausted = true
	return false
}

// ShallowSeek advances block-by-block (without decoding) to the first
// block whose last doc-id is >= docid.
func (s *termScorer) ShallowSeek(docid DocID) bool {
	if s.exhausted {
		return false
	}
	if s.cursor.ShallowSeek(docid) {
		return true
	}
	s.exhausted = true
	return false
}

// Seek advances to the first doc-id >= docid.
func (s *termScorer) Seek(docid DocID) DocID {
	if s.exhausted {
		return TerminatedDoc
	}
	d := s.cursor.Seek(docid)
	if d == TerminatedDoc {
		s.exhausted = true
	}
	return d
}

// restoreOrdering drops exhausted scorers and sorts the remainder by
// ascending doc-id, the invariant every WAND step depends on.
func restoreOrdering(scorers []*termScorer) []*termScorer {
	live := scorers[:0]
	for _, s := range scorers {
		if s.DocID() != TerminatedDoc {
			live = append(live, s)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].DocID() < live[j].DocID() })
	return live
}

// findPivotDoc scans scorers (ascending doc-id order) accumulating
// their term-level max-score upper bounds until the running sum
// exceeds threshold, returning the index of the scorer at which that
// happens (the WAND pivot) and its doc-id. found is false once even the
// sum over every remaining scorer cannot exceed threshold: no further
// candidate can make the result set. The pivot index is then extended
// past any further scorers tied at the same pivot doc-id, since they
// all must contribute to that doc's score and advance together.
func findPivotDoc(scorers []*termScorer, threshold float32) (pivot int, pivotDoc DocID, found bool) {
	var sum float32
	for i, s := range scorers {
		sum += s.MaxScore()
		if sum > threshold {
			pivotDoc = s.DocID()
			for i+1 < len(scorers) && scorers[i+1].DocID() == pivotDoc {
				i++
			}
			return i, pivotDoc, true
		}
	}
	return 0, TerminatedDoc, false
}

// blockMaxWasTooLowAdvanceOneScorer moves whichever scorer among
// scorers[:pivot+1] has the earliest-ending block forward, to the doc
// after that block or to the current doc-id of the first scorer past the
// pivot, whichever is smaller: no doc before that target can beat the
// threshold. The slice is left unordered for the caller to re-sort.
func blockMaxWasTooLowAdvanceOneScorer(scorers []*termScorer, pivot int) {
	best := 0
	bestLast := scorers[0].LastDocInBlock()
	for i := 1; i <= pivot; i++ {
		if last := scorers[i].LastDocInBlock(); last < bestLast {
			best = i
			bestLast = last
		}
	}
	target := bestLast
	if target != TerminatedDoc {
		target++
	}
	for _, s := range scorers[pivot+1:] {
		if d := s.DocID(); d < target {
			target = d
		}
	}
	scorers[best].Seek(target)
}

// advanceAllScorersOnPivot seeks every scorer strictly before pivot
// (whose doc-id trails pivotDoc) forward to its first doc-id >= pivotDoc.
func advanceAllScorersOnPivot(scorers []*termScorer, pivot int, pivotDoc DocID) {
	for i := 0; i < pivot; i++ {
		scorers[i].Seek(pivotDoc)
	}
}

// alignScorers re-sorts scorers after one or more of them moved, and
// prunes exhausted ones.
func alignScorers(scorers []*termScorer) []*termScorer {
	return restoreOrdering(scorers)
}

// blockWandSingle is the single-term fast path: no pivot selection is
// needed, so every block whose max score cannot beat the current
// threshold is skipped outright.
func blockWandSingle(fieldNorm *FieldNormStore, s *termScorer, topk *TopKComputer) error {
	for s.DocID() != TerminatedDoc {
		if s.BlockMaxScore() <= topk.Threshold() {
			if !s.NextBlock() {
				break
			}
			continue
		}
		doc := s.DocID()
		score, err := s.Score(fieldNorm)
		if err != nil {
			return err
		}
		topk.Insert(doc, score)
		if !s.Advance() {
			break
		}
	}
	return nil
}

// blockWandMulti is the general block-max WAND loop, following the
// classic find_pivot/align/advance sequence: select
// a pivot doc-id using term-level max-score bounds, check whether the
// pivot's actual blocks can beat the threshold, and either score the
// pivot doc or skip ahead, repeating until no candidate can beat the
// running threshold.
func blockWandMulti(fieldNorm *FieldNormStore, scorers []*termScorer, topk *TopKComputer) error {
	scorers = restoreOrdering(scorers)
	for len(scorers) > 0 {
		threshold := topk.Threshold()
		pivot, pivotDoc, found := findPivotDoc(scorers, threshold)
		if !found {
			break
		}
		if pivotDoc == TerminatedDoc {
			break
		}

		if pivotDoc == scorers[0].DocID() {
			var blockMaxSum float32
			for i := 0; i <= pivot; i++ {
				blockMaxSum += scorers[i].BlockMaxScore()
			}
			if blockMaxSum <= threshold {
				blockMaxWasTooLowAdvanceOneScorer(scorers, pivot)
				scorers = alignScorers(scorers)
				continue
			}

			var score float32
			for i := 0; i <= pivot; i++ {
				if scorers[i].DocID() != pivotDoc {
					continue
				}
				s, err := scorers[i].Score(fieldNorm)
				if err != nil {
					return err
				}
				score += s
			}
			topk.Insert(pivotDoc, score)
			for i := 0; i <= pivot; i++ {
				if scorers[i].DocID() == pivotDoc {
					scorers[i].Advance()
				}
			}
			scorers = alignScorers(scorers)
			continue
		}

		advanceAllScorersOnPivot(scorers, pivot, pivotDoc)
		scorers = alignScorers(scorers)
	}
	return nil
}

// BlockMaxWAND runs the block-max WAND top-k scorer over scorers,
// dispatching to the single-term fast path when there is only one
// query term, and returns the k highest-scoring docs by descending
// score.
func BlockMaxWAND(fieldNorm *FieldNormStore, scorers []*termScorer, k int) ([]ScoredDoc, error) {
	topk := NewTopKComputer(k)
	if len(scorers) == 0 {
		return nil, nil
	}
	if len(scorers) == 1 {
		if err := blockWandSingle(fieldNorm, scorers[0], topk); err != nil {
			return nil, err
		}
		return topk.Results(), nil
	}
	if err := blockWandMulti(fieldNorm, scorers, topk); err != nil {
		return nil, err
	}
	return topk.Results(), nil
}

// BruteForceMerge is the brute-force loser-tree fallback: every posting
// of every scorer is visited in doc-id order with no block-max pruning,
// useful for pure disjunctions or diagnostics where skipping would be
// unsound.
func BruteForceMerge(fieldNorm *FieldNormStore, scorers []*termScorer, k int) ([]ScoredDoc, error) {
	topk := NewTopKComputer(k)
	tree := NewLoserTree(scorers)
	for {
		doc, score, err := tree.PopMatching(fieldNorm)
		if err != nil {
			return nil, err
		}
		if doc == TerminatedDoc {
			break
		}
		topk.Insert(doc, score)
	}
	return topk.Results(), nil
}
