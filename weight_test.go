package bm25idx

import "testing"

func TestNewBm25WeightDefaults(t *testing.T) {
	w := NewBm25Weight(1, 100, 10, 0, 0, DefaultB)
	if w.K1 != DefaultK1 {
		t.Errorf("K1 = %v, want default %v", w.K1, DefaultK1)
	}
	if w.AvgDL != 1 {
		t.Errorf("AvgDL = %v, want 1 (avgdl fallback)", w.AvgDL)
	}
}

func TestBm25WeightScoreMonotonicInTF(t *testing.T) {
	w := NewBm25Weight(1, 1000, 50, 20, DefaultK1, DefaultB)
	low := w.Score(20, 1)
	high := w.Score(20, 5)
	if !(high > low) {
		t.Errorf("Score did not increase with tf: Score(tf=1)=%v Score(tf=5)=%v", low, high)
	}
}

func TestBm25WeightScoreDecreasesWithLongerDoc(t *testing.T) {
	w := NewBm25Weight(1, 1000, 50, 20, DefaultK1, DefaultB)
	short := w.Score(10, 3)
	long := w.Score(200, 3)
	if !(short > long) {
		t.Errorf("longer document should score lower: short=%v long=%v", short, long)
	}
}

func TestBm25WeightMaxScoreIsUpperBound(t *testing.T) {
	w := NewBm25Weight(2, 1000, 50, 20, DefaultK1, DefaultB)
	max := w.MaxScore()
	for _, tf := range []uint32{1, 2, 50, 1000} {
		for _, fn := range []float32{0, 10, 50, 500} {
			if s := w.Score(fn, tf); s > max {
				t.Errorf("Score(fieldnorm=%v, tf=%v) = %v exceeds MaxScore() = %v", fn, tf, s, max)
			}
		}
	}
}

func TestIDFDecreasesWithDocFreq(t *testing.T) {
	rare := idf(1000, 1)
	common := idf(1000, 900)
	if !(rare > common) {
		t.Errorf("idf should decrease as df grows: idf(df=1)=%v idf(df=900)=%v", rare, common)
	}
}
