// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"sync"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/clock"
	"kvbench/internal/bench/coordinator"
	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/stage"
)

// RunAsyncWorker is the event-loop counterpart to RunSyncWorker: instead of
// blocking one goroutine per in-flight operation, it keeps maxInFlight
// async calls outstanding at all times, issuing a new one from its
// completion callback, until do_work is cleared and every outstanding
// callback has drained.
func RunAsyncWorker(td *ThreadData, coord *coordinator.Coordinator, maxInFlight int) {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	for {
		coord.Wait()
		if td.Finished() {
			return
		}

		s := &td.Client.Stages[td.StageIdx]
		runStageAsync(td, coord, s, maxInFlight)

		coord.Wait()
	}
}

func runStageAsync(td *ThreadData, coord *coordinator.Coordinator, s *stage.Stage, maxInFlight int) {
	if !s.Bounded() {
		runLinearAsync(td, s, s.Workload == stage.InsertLinear, maxInFlight)
		coord.Complete()
		return
	}
	coord.Complete()
	runDiceLoopAsync(td, s, maxInFlight)
}

// runLinearAsync keeps maxInFlight puts/deletes outstanding across the
// worker's striped key range, waiting for every outstanding call to drain
// before returning.
func runLinearAsync(td *ThreadData, s *stage.Stage, isWrite bool, maxInFlight int) {
	var fixed map[string]any
	if isWrite && !s.Random && s.ObjSpec != nil {
		fixed, _ = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
	}

	stride := int64(td.NumPeers)
	if stride <= 0 {
		stride = 1
	}
	next := s.KeyStart + int64(td.Index)

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxInFlight)

	for next < s.KeyEnd && td.DoWork() {
		key := next
		next += stride
		sem <- struct{}{}
		wg.Add(1)
		done := func() {
			<-sem
			wg.Done()
		}
		if isWrite {
			writeOneAsync(td, s, key, fixed, done)
		} else {
			deleteOneAsync(td, s, key, done)
		}
	}
	wg.Wait()
}

func writeOneAsync(td *ThreadData, s *stage.Stage, key int64, fixed map[string]any, done func()) {
	ctx, cancel, pol := policyFor(td.Client, s)
	record := fixed
	if record == nil {
		var err error
		record, err = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
		if err != nil {
			cancel()
			recordOutcome(td.Client, &td.Client.Write, timing{}, err)
			done()
			return
		}
	}
	t0 := clock.NowMicros()
	td.Client.Client.PutAsync(ctx, key, record, pol, func(err error) {
		defer cancel()
		t1 := clock.NowMicros()
		recordOutcome(td.Client, &td.Client.Write, timing{t0, t1}, err)
		done()
	})
}

func deleteOneAsync(td *ThreadData, s *stage.Stage, key int64, done func()) {
	ctx, cancel, pol := policyFor(td.Client, s)
	t0 := clock.NowMicros()
	td.Client.Client.DeleteAsync(ctx, key, pol, func(err error) {
		defer cancel()
		t1 := clock.NowMicros()
		recordOutcome(td.Client, &td.Client.Write, timing{t0, t1}, err)
		done()
	})
}

// runDiceLoopAsync is the open-ended mix's event-loop form: it seeds
// maxInFlight operations, and each completion callback both records its
// outcome and, if do_work is still set, issues the next operation in its
// place. The loop returns once do_work is cleared and every seeded slot
// has drained.
func runDiceLoopAsync(td *ThreadData, s *stage.Stage, maxInFlight int) {
	var fixed map[string]any
	if !s.Random && s.ObjSpec != nil {
		fixed, _ = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
	}
	keySpan := s.KeyEnd - s.KeyStart
	if keySpan <= 0 {
		keySpan = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	// issueNext rolls the next op and, for ops that consume td.Rnd to build
	// their payload (replace regenerates, udf draws its args), generates
	// that payload under mu too: td.Rnd is a single *rand.Rand shared by
	// every in-flight callback goroutine here, and it is not safe for
	// concurrent use.
	var issueNext func()
	issueNext = func() {
		mu.Lock()
		rnd := td.Rnd
		key := s.KeyStart + rnd.Int63n(keySpan)
		op := RollDice(s, rnd)

		var record map[string]any
		var args map[string]any
		var genErr error
		switch op {
		case OpWrite:
			// fixed is nil exactly when the stage is random, in which case
			// every write regenerates its record from td.Rnd too.
			if fixed == nil {
				record, genErr = objspec.Populate(s.ObjSpec, rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
			}
		case OpReplace:
			record, genErr = objspec.Populate(s.ObjSpec, rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
		case OpUDF:
			if s.UDF != nil && s.UDF.ArgsSpec != nil {
				args, genErr = objspec.Populate(s.UDF.ArgsSpec, rnd, "arg", nil, td.Client.CompressionRatio)
			}
		}
		mu.Unlock()

		onDone := func() {
			if td.DoWork() {
				issueNext()
			} else {
				wg.Done()
			}
		}

		if genErr != nil {
			counters := &td.Client.Write
			if op == OpUDF {
				counters = &td.Client.UDF
			}
			recordOutcome(td.Client, counters, timing{}, genErr)
			onDone()
			return
		}

		switch op {
		case OpRead:
			executeReadAsync(td, s, key, onDone)
		case OpWrite:
			w := fixed
			if w == nil {
				w = record
			}
			writeOneAsync(td, s, key, w, onDone)
		case OpReplace:
			writeOneAsync(td, s, key, record, onDone)
		case OpUDF:
			executeUDFAsync(td, s, key, args, onDone)
		case OpDelete:
			deleteOneAsync(td, s, key, onDone)
		}
	}

	for i := 0; i < maxInFlight; i++ {
		wg.Add(1)
		if td.DoWork() {
			issueNext()
		} else {
			wg.Done()
		}
	}
	wg.Wait()
}

func executeReadAsync(td *ThreadData, s *stage.Stage, key int64, done func()) {
	ctx, cancel, pol := policyFor(td.Client, s)
	if s.BatchSize > 1 {
		keys := make([]int64, s.BatchSize)
		for i := range keys {
			keys[i] = key + int64(i)
		}
		t0 := clock.NowMicros()
		td.Client.Client.BatchReadAsync(ctx, keys, pol, func(results []client.BatchResult, err error) {
			defer cancel()
			t1 := clock.NowMicros()
			if err != nil {
				recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, err)
			} else {
				for _, res := range results {
					recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, res.Err)
				}
			}
			done()
		})
		return
	}
	t0 := clock.NowMicros()
	td.Client.Client.GetAsync(ctx, key, pol, func(_ map[string]any, err error) {
		defer cancel()
		t1 := clock.NowMicros()
		recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, err)
		done()
	})
}

// executeUDFAsync applies a UDF with an already-generated args map: its
// sole caller (the dice loop) draws args under its own RNG guard, since
// td.Rnd is not safe for concurrent use across in-flight callbacks.
func executeUDFAsync(td *ThreadData, s *stage.Stage, key int64, args map[string]any, done func()) {
	ctx, cancel, pol := policyFor(td.Client, s)
	module, fn := "", ""
	if s.UDF != nil {
		module, fn = s.UDF.Module, s.UDF.Function
	}
	t0 := clock.NowMicros()
	td.Client.Client.UDFApplyAsync(ctx, key, module, fn, args, pol, func(err error) {
		defer cancel()
		t1 := clock.NowMicros()
		recordOutcome(td.Client, &td.Client.UDF, timing{t0, t1}, err)
		done()
	})
}
