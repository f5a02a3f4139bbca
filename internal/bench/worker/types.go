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

// Package worker implements the per-thread transaction loops (sync and
// async) that execute a stage's workload: linear insert, delete-bin, and
// the dice-driven read/update/replace/udf/delete mixes.
package worker

import (
	"math/rand"
	"sync/atomic"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/hdr"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/stage"
	"kvbench/internal/bench/throttle"
)

// OpCounters is the atomic {hit,miss,timeout,error,count} tuple tracked
// per operation class (read, write, udf). Every field is updated with a
// single atomic instruction from worker goroutines and drained by the
// Reporter once per period.
type OpCounters struct {
	Hit     atomic.Int64
	Miss    atomic.Int64
	Timeout atomic.Int64
	Error   atomic.Int64
	Count   atomic.Int64
}

// CounterSnapshot is the result of an atomic fetch-and-zero of an
// OpCounters.
type CounterSnapshot struct {
	Hit, Miss, Timeout, Error, Count int64
}

// FetchAndZero atomically drains every field, returning their prior
// values.
func (c *OpCounters) FetchAndZero() CounterSnapshot {
	return CounterSnapshot{
		Hit:     c.Hit.Swap(0),
		Miss:    c.Miss.Swap(0),
		Timeout: c.Timeout.Swap(0),
		Error:   c.Error.Swap(0),
		Count:   c.Count.Swap(0),
	}
}

// ClientData is the single process-wide record the orchestrator owns for
// the life of the run: the KvClient handle, the stage sequence, the
// shared histograms (one linear and one HDR per operation class), the
// atomic counters, and run-wide knobs like debug logging and the
// cumulative-transaction shutdown limit.
type ClientData struct {
	Client client.KvClient
	Stages stage.Stages

	Read, Write, UDF OpCounters

	ReadHist, WriteHist, UDFHist *histogram.Histogram
	ReadHdr, WriteHdr, UDFHdr    *hdr.Histogram

	Debug            bool
	CompressionRatio float64

	// TxnLimit is the cumulative transaction count at which the run
	// requests shutdown; 0 means unbounded.
	TxnLimit  int64
	txnTotal  atomic.Int64
	Shutdown  atomic.Bool
}

// AddTxn records one more completed transaction against the cumulative
// limit, requesting shutdown once TxnLimit is reached.
func (cd *ClientData) AddTxn(n int64) {
	if cd.TxnLimit <= 0 {
		return
	}
	if cd.txnTotal.Add(n) >= cd.TxnLimit {
		cd.Shutdown.Store(true)
	}
}

// ThreadData is the per-worker state: its back-reference to ClientData, a
// thread-local PRNG and throttle, its current stage index, and the
// do_work/finished flags. finished must be published before do_work is
// cleared so a worker observing do_work==false can still see finished to
// distinguish a stage change from a full shutdown.
type ThreadData struct {
	Client   *ClientData
	Index    int // 0-based worker index, used to stripe linear key ranges
	NumPeers int // total worker count, the stripe

	Rnd      *rand.Rand
	Throttle *throttle.Throttle

	StageIdx int

	doWork   atomic.Bool
	finished atomic.Bool
}

// SetDoWork sets the do_work flag.
func (td *ThreadData) SetDoWork(v bool) { td.doWork.Store(v) }

// DoWork reads the do_work flag.
func (td *ThreadData) DoWork() bool { return td.doWork.Load() }

// Shutdown publishes finished=true, then do_work=false, in that order, so
// a worker can never observe do_work==false without also being able to
// observe finished==true.
func (td *ThreadData) Shutdown() {
	td.finished.Store(true)
	td.doWork.Store(false)
}

// Finished reads the finished flag.
func (td *ThreadData) Finished() bool { return td.finished.Load() }
