package histogram

import "testing"

func TestClassification(t *testing.T) {
	h, err := New(100, []Range{
		{UpperBound: 4000, Width: 100},
		{UpperBound: 64000, Width: 1000},
		{UpperBound: 128000, Width: 4000},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	values := []int64{50, 100, 3999, 4000, 63999, 64000, 127999, 200000}
	for _, v := range values {
		h.Add(v)
	}

	snap := h.SnapshotAndClear()
	if snap.Underflow != 1 {
		t.Errorf("underflow = %d, want 1", snap.Underflow)
	}
	if snap.Overflow != 1 {
		t.Errorf("overflow = %d, want 1", snap.Overflow)
	}
	if snap.Total != uint64(len(values)) {
		t.Errorf("total = %d, want %d", snap.Total, len(values))
	}

	want := map[int64]uint32{
		4000:   1, // v=3999, last bucket of range 0
		5000:   1, // v=4000, first bucket of range 1
		64000:  1, // v=63999, last bucket of range 1
		68000:  1, // v=64000, first bucket of range 2
		128000: 1, // v=127999, last bucket of range 2
	}
	got := map[int64]uint32{}
	for _, b := range snap.Buckets {
		got[b.UpperBound] = b.Count
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("bucket upper=%d count=%d, want %d", k, got[k], v)
		}
	}
}

func TestSnapshotAndClearIsIdempotent(t *testing.T) {
	h, err := New(0, []Range{{UpperBound: 100, Width: 10}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		h.Add(int64(i))
	}
	first := h.SnapshotAndClear()
	if first.Total != 5 {
		t.Fatalf("first total = %d, want 5", first.Total)
	}
	second := h.SnapshotAndClear()
	if second.Total != 0 {
		t.Errorf("second total = %d, want 0 (snapshot must drain to all-zero)", second.Total)
	}
}

func TestRangesMustBeContiguousAndAscending(t *testing.T) {
	if _, err := New(0, []Range{{UpperBound: 100, Width: 7}}); err == nil {
		t.Error("expected error for width not dividing span evenly")
	}
	if _, err := New(100, []Range{{UpperBound: 50, Width: 10}}); err == nil {
		t.Error("expected error for upper bound below lower bound")
	}
}
