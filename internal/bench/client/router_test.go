package client

import (
	"context"
	"testing"
)

func TestRouterRoundTripsAcrossShards(t *testing.T) {
	shards := []KvClient{NewMock(), NewMock(), NewMock()}
	r := NewRouter(shards)
	ctx := context.Background()

	for k := int64(0); k < 50; k++ {
		if err := r.Put(ctx, k, map[string]any{"v": k}, Policy{}); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}
	for k := int64(0); k < 50; k++ {
		rec, err := r.Get(ctx, k, Policy{})
		if err != nil {
			t.Fatalf("Get(%d): %v", k, err)
		}
		if rec["v"] != k {
			t.Fatalf("Get(%d) = %v, want v=%d", k, rec, k)
		}
	}
}

// TestRouterUsesMoreThanOneShard guards against a rendezvous mapping that
// degenerates to always picking shard 0.
func TestRouterUsesMoreThanOneShard(t *testing.T) {
	shards := []KvClient{NewMock(), NewMock(), NewMock()}
	r := NewRouter(shards)

	seen := map[KvClient]bool{}
	for k := int64(0); k < 200; k++ {
		seen[r.shardFor(k)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("rendezvous routing only ever picked %d distinct shard(s) out of %d", len(seen), len(shards))
	}
}

func TestRouterDeleteAndBatchRead(t *testing.T) {
	shards := []KvClient{NewMock(), NewMock()}
	r := NewRouter(shards)
	ctx := context.Background()

	keys := []int64{1, 2, 3, 4, 5}
	for _, k := range keys {
		if err := r.Put(ctx, k, map[string]any{"k": k}, Policy{}); err != nil {
			t.Fatalf("Put(%d): %v", k, err)
		}
	}

	results, err := r.BatchRead(ctx, keys, Policy{})
	if err != nil {
		t.Fatalf("BatchRead: %v", err)
	}
	if len(results) != len(keys) {
		t.Fatalf("BatchRead returned %d results, want %d", len(results), len(keys))
	}
	for i, k := range keys {
		if results[i].Err != nil {
			t.Fatalf("BatchRead key %d: %v", k, results[i].Err)
		}
		if results[i].Record["k"] != k {
			t.Fatalf("BatchRead key %d record = %v, want k=%d", k, results[i].Record, k)
		}
	}

	if err := r.Delete(ctx, keys[0], Policy{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get(ctx, keys[0], Policy{}); err != ErrNotFound {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestRouterAsyncPutGet(t *testing.T) {
	shards := []KvClient{NewMock(), NewMock()}
	r := NewRouter(shards)
	ctx := context.Background()

	done := make(chan error, 1)
	r.PutAsync(ctx, 7, map[string]any{"a": int64(1)}, Policy{}, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("PutAsync: %v", err)
	}

	got := make(chan error, 1)
	r.GetAsync(ctx, 7, Policy{}, func(rec map[string]any, err error) {
		if rec["a"] != int64(1) {
			t.Errorf("GetAsync record = %v, want a=1", rec)
		}
		got <- err
	})
	if err := <-got; err != nil {
		t.Fatalf("GetAsync: %v", err)
	}
}
