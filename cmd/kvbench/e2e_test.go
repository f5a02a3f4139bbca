//go:build e2e

package main

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/orchestrator"
	"kvbench/internal/bench/stage"
)

// TestRedisBackendE2E drives a small insert-then-read/update run against a
// real Redis instance. Requires a Redis at 127.0.0.1:6379; skips otherwise.
func TestRedisBackendE2E(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: redis not reachable on 127.0.0.1:6379: %v", err)
	}
	defer rdb.Close()

	spec, err := objspec.Parse("I,S10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	kv := client.NewRedisClient(rdb, "kvbench-e2e", "default")
	stages := stage.Stages{
		{
			Workload: stage.InsertLinear,
			KeyStart: 0,
			KeyEnd:   50,
			ObjSpec:  spec,
		},
		{
			Workload:  stage.ReadUpdate,
			ReadPct:   50,
			KeyStart:  0,
			KeyEnd:    50,
			Random:    true,
			ObjSpec:   spec,
			DurationS: 1,
		},
	}

	result := orchestrator.Run(kv, stages, orchestrator.Config{NumThreads: 4})

	defer func() {
		for k := int64(0); k < 50; k++ {
			rdb.Del(context.Background(), "kvbench:kvbench-e2e:default:"+strconv.FormatInt(k, 10))
		}
	}()

	for k := int64(0); k < 50; k++ {
		if _, err := kv.Get(context.Background(), k, client.Policy{}); err != nil {
			t.Errorf("key %d missing after insert-linear stage: %v", k, err)
		}
	}

	snap := result.Write.FetchAndZero()
	if snap.Hit == 0 {
		t.Fatal("expected nonzero write hits against real redis")
	}
}
