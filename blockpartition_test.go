package bm25idx

import "testing"

func TestFixedBlockPartitionBasic(t *testing.T) {
	p := NewFixedBlockPartition()
	total := CompressionBlockSize*2 + 10
	for i := 0; i < total; i++ {
		p.AddDoc(float32(i % 7))
	}
	p.MakePartitions()

	partitions := p.Partitions()
	if len(partitions) != 2 {
		t.Fatalf("len(Partitions()) = %d, want 2 full blocks", len(partitions))
	}
	if partitions[0] != CompressionBlockSize-1 {
		t.Errorf("Partitions()[0] = %d, want %d", partitions[0], CompressionBlockSize-1)
	}
	if partitions[1] != CompressionBlockSize*2-1 {
		t.Errorf("Partitions()[1] = %d, want %d", partitions[1], CompressionBlockSize*2-1)
	}

	maxDoc := p.MaxDoc()
	if len(maxDoc) != 2 {
		t.Fatalf("len(MaxDoc()) = %d, want 2", len(maxDoc))
	}
	for blockIdx, idx := range maxDoc {
		start := uint32(blockIdx * CompressionBlockSize)
		if idx < start || idx >= start+CompressionBlockSize {
			t.Errorf("MaxDoc()[%d] = %d falls outside block range [%d, %d)", blockIdx, idx, start, start+CompressionBlockSize)
		}
	}
}

func TestFixedBlockPartitionMaxDocIsActuallyMax(t *testing.T) {
	p := NewFixedBlockPartition()
	scores := make([]float32, CompressionBlockSize)
	for i := range scores {
		scores[i] = float32(i)
	}
	scores[42] = 9999
	for _, s := range scores {
		p.AddDoc(s)
	}
	p.MakePartitions()

	if got := p.MaxDoc()[0]; got != 42 {
		t.Errorf("MaxDoc()[0] = %d, want 42 (the planted maximum)", got)
	}
}

func TestFixedBlockPartitionReset(t *testing.T) {
	p := NewFixedBlockPartition()
	for i := 0; i < CompressionBlockSize; i++ {
		p.AddDoc(1)
	}
	p.MakePartitions()
	p.Reset()

	if len(p.Partitions()) != 0 || len(p.MaxDoc()) != 0 {
		t.Fatal("Reset() left stale partitions/maxDoc")
	}
}

func TestFixedBlockPartitionTrailingPartial(t *testing.T) {
	p := NewFixedBlockPartition()
	for i := 0; i < CompressionBlockSize/2; i++ {
		p.AddDoc(1)
	}
	p.MakePartitions()
	if len(p.Partitions()) != 0 {
		t.Errorf("a partial block should not produce a partition boundary, got %d", len(p.Partitions()))
	}
}
