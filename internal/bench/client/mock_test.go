package client

import (
	"context"
	"testing"
)

func TestMockPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	if err := m.Put(ctx, 1, map[string]any{"a": int64(1)}, Policy{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := m.Get(ctx, 1, Policy{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec["a"] != int64(1) {
		t.Fatalf("Get returned %v, want a=1", rec)
	}

	if err := m.Delete(ctx, 1, Policy{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, 1, Policy{}); err != ErrNotFound {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMockAsyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	done := make(chan error, 1)
	m.PutAsync(ctx, 2, map[string]any{"x": "y"}, Policy{}, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("PutAsync: %v", err)
	}

	got := make(chan map[string]any, 1)
	m.GetAsync(ctx, 2, Policy{}, func(record map[string]any, err error) {
		if err != nil {
			t.Errorf("GetAsync: %v", err)
		}
		got <- record
	})
	rec := <-got
	if rec["x"] != "y" {
		t.Fatalf("GetAsync returned %v", rec)
	}
}

func TestMockBatchRead(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	for i := int64(0); i < 3; i++ {
		if err := m.Put(ctx, i, map[string]any{"k": i}, Policy{}); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	results, err := m.BatchRead(ctx, []int64{0, 1, 2, 99}, Policy{})
	if err != nil {
		t.Fatalf("BatchRead: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	if results[3].Err != ErrNotFound {
		t.Errorf("results[3].Err = %v, want ErrNotFound", results[3].Err)
	}
}
