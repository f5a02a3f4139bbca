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
	"context"
	"fmt"
	"time"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/clock"
	"kvbench/internal/bench/coordinator"
	"kvbench/internal/bench/hdr"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/stage"
	"kvbench/internal/bench/throttle"
)

// baseBinName is the declared base name every generated record's bins are
// derived from, per the naming rule in objspec.BinName.
const baseBinName = "testbin"

func policyFor(cd *ClientData, s *stage.Stage) (context.Context, context.CancelFunc, client.Policy) {
	pol := client.Policy{CompressionRatio: cd.CompressionRatio}
	ctx := context.Background()
	cancel := func() {}
	if s.TTLS > 0 {
		pol.TotalTimeout = time.Duration(s.TTLS) * time.Second
		ctx, cancel = context.WithTimeout(ctx, pol.TotalTimeout)
	}
	return ctx, cancel, pol
}

// RunSyncWorker runs the blocking per-thread transaction loop across every
// stage of the run, coordinating stage boundaries with coord. It returns
// once the orchestrator has published Shutdown on td.
func RunSyncWorker(td *ThreadData, coord *coordinator.Coordinator) {
	for {
		coord.Wait() // entry barrier: stage begins
		if td.Finished() {
			return
		}

		s := &td.Client.Stages[td.StageIdx]
		runStageSync(td, coord, s)

		coord.Wait() // exit barrier: stage ends
	}
}

func runStageSync(td *ThreadData, coord *coordinator.Coordinator, s *stage.Stage) {
	if !s.Bounded() {
		runLinearSync(td, s, s.Workload == stage.InsertLinear)
		coord.Complete()
		return
	}
	coord.Complete() // open-ended: declare completion immediately
	runDiceLoopSync(td, s)
}

// runLinearSync strides key across [KeyStart, KeyEnd) with a stride of
// NumPeers starting at Index, writing (isWrite) or deleting every key in
// range, until do_work is cleared or the range is exhausted.
func runLinearSync(td *ThreadData, s *stage.Stage, isWrite bool) {
	var fixed map[string]any
	if isWrite && !s.Random && s.ObjSpec != nil {
		fixed, _ = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
	}

	stride := int64(td.NumPeers)
	if stride <= 0 {
		stride = 1
	}
	for key := s.KeyStart + int64(td.Index); td.DoWork() && key < s.KeyEnd; key += stride {
		if isWrite {
			writeOne(td, s, key, fixed)
		} else {
			deleteOne(td, s, key)
		}
	}
}

func writeOne(td *ThreadData, s *stage.Stage, key int64, fixed map[string]any) {
	ctx, cancel, pol := policyFor(td.Client, s)
	defer cancel()
	record := fixed
	if record == nil {
		var err error
		record, err = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
		if err != nil {
			recordOutcome(td.Client, &td.Client.Write, timing{}, err)
			return
		}
	}
	t0 := clock.NowMicros()
	err := td.Client.Client.Put(ctx, key, record, pol)
	t1 := clock.NowMicros()
	recordOutcome(td.Client, &td.Client.Write, timing{t0, t1}, err)
}

func deleteOne(td *ThreadData, s *stage.Stage, key int64) {
	ctx, cancel, pol := policyFor(td.Client, s)
	defer cancel()
	t0 := clock.NowMicros()
	err := td.Client.Client.Delete(ctx, key, pol)
	t1 := clock.NowMicros()
	recordOutcome(td.Client, &td.Client.Write, timing{t0, t1}, err)
}

// runDiceLoopSync executes the open-ended read/update/replace/udf/delete
// mix until do_work is cleared, pacing itself with the stage's throttle
// when tps != 0.
func runDiceLoopSync(td *ThreadData, s *stage.Stage) {
	if s.TPS != 0 {
		td.Throttle = throttle.New(int64(1_000_000 / s.TPS))
	}
	var fixed map[string]any
	if !s.Random && s.ObjSpec != nil {
		fixed, _ = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
	}

	keySpan := s.KeyEnd - s.KeyStart
	if keySpan <= 0 {
		keySpan = 1
	}

	for td.DoWork() {
		key := s.KeyStart + td.Rnd.Int63n(keySpan)

		switch RollDice(s, td.Rnd) {
		case OpRead:
			executeRead(td, s, key)
		case OpWrite:
			executeWrite(td, s, key, fixed)
		case OpReplace:
			executeWrite(td, s, key, nil)
		case OpUDF:
			executeUDF(td, s, key)
		case OpDelete:
			deleteOne(td, s, key)
		}

		if s.TPS != 0 {
			pause := td.Throttle.PauseFor(clock.NowMicros())
			if pause > 0 {
				time.Sleep(time.Duration(pause) * time.Microsecond)
			}
		}
	}
}

func executeRead(td *ThreadData, s *stage.Stage, key int64) {
	ctx, cancel, pol := policyFor(td.Client, s)
	defer cancel()
	if s.BatchSize > 1 {
		keys := make([]int64, s.BatchSize)
		for i := range keys {
			keys[i] = key + int64(i)
		}
		t0 := clock.NowMicros()
		results, err := td.Client.Client.BatchRead(ctx, keys, pol)
		t1 := clock.NowMicros()
		if err != nil {
			recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, err)
			return
		}
		for _, res := range results {
			recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, res.Err)
		}
		return
	}
	t0 := clock.NowMicros()
	_, err := td.Client.Client.Get(ctx, key, pol)
	t1 := clock.NowMicros()
	recordOutcome(td.Client, &td.Client.Read, timing{t0, t1}, err)
}

// executeWrite regenerates a record (fixed == nil, covering both the
// "random" stage setting and a replace op, which always regenerates) or
// reuses fixed, then puts it.
func executeWrite(td *ThreadData, s *stage.Stage, key int64, fixed map[string]any) {
	ctx, cancel, pol := policyFor(td.Client, s)
	defer cancel()
	record := fixed
	if record == nil {
		var err error
		record, err = objspec.Populate(s.ObjSpec, td.Rnd, baseBinName, s.WriteBinIndices, td.Client.CompressionRatio)
		if err != nil {
			recordOutcome(td.Client, &td.Client.Write, timing{}, err)
			return
		}
	}
	t0 := clock.NowMicros()
	err := td.Client.Client.Put(ctx, key, record, pol)
	t1 := clock.NowMicros()
	recordOutcome(td.Client, &td.Client.Write, timing{t0, t1}, err)
}

func executeUDF(td *ThreadData, s *stage.Stage, key int64) {
	ctx, cancel, pol := policyFor(td.Client, s)
	defer cancel()
	var args map[string]any
	module, fn := "", ""
	if s.UDF != nil {
		module, fn = s.UDF.Module, s.UDF.Function
		if s.UDF.ArgsSpec != nil {
			args, _ = objspec.Populate(s.UDF.ArgsSpec, td.Rnd, "arg", nil, td.Client.CompressionRatio)
		}
	}
	t0 := clock.NowMicros()
	err := td.Client.Client.UDFApply(ctx, key, module, fn, args, pol)
	t1 := clock.NowMicros()
	recordOutcome(td.Client, &td.Client.UDF, timing{t0, t1}, err)
}

type timing struct{ t0, t1 int64 }

// recordOutcome classifies err into hit/miss/timeout/error, increments the
// matching counter, counts the operation against the cumulative transaction
// limit whatever its outcome, and on success records the elapsed latency
// into both cooperating histograms.
func recordOutcome(cd *ClientData, counters *OpCounters, tm timing, err error) {
	counters.Count.Add(1)
	cd.AddTxn(1)
	switch {
	case err == nil:
		counters.Hit.Add(1)
	case err == client.ErrNotFound:
		counters.Miss.Add(1)
		return
	case err == client.ErrTimeout:
		counters.Timeout.Add(1)
		return
	default:
		counters.Error.Add(1)
		if cd.Debug {
			fmt.Printf("kvbench: op error: %v\n", err)
		}
		return
	}

	elapsed := tm.t1 - tm.t0
	hist, hdrHist := selectHistograms(cd, counters)
	if hist != nil {
		hist.Add(elapsed)
	}
	if hdrHist != nil {
		hdrHist.Record(elapsed)
	}
}

func selectHistograms(cd *ClientData, counters *OpCounters) (*histogram.Histogram, *hdr.Histogram) {
	switch counters {
	case &cd.Read:
		return cd.ReadHist, cd.ReadHdr
	case &cd.Write:
		return cd.WriteHist, cd.WriteHdr
	case &cd.UDF:
		return cd.UDFHist, cd.UDFHdr
	}
	return nil, nil
}
