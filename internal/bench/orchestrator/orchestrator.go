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

// Package orchestrator wires ClientData, ThreadData, the Coordinator, the
// Reporter, and the worker goroutines together, driving a Stages sequence
// from start to finish.
package orchestrator

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/clock"
	"kvbench/internal/bench/coordinator"
	"kvbench/internal/bench/hdr"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/reporter"
	"kvbench/internal/bench/stage"
	"kvbench/internal/bench/worker"
)

// Config is the subset of CLI/YAML knobs the orchestrator needs to run a
// benchmark; everything stage-specific lives in the Stages themselves.
type Config struct {
	NumThreads    int
	Async         bool
	AsyncMaxInFlight int

	HistogramRanges []histogram.Range
	HdrEnabled      bool
	HdrMinValue     int64
	HdrMaxValue     int64
	HdrSigFigs      int
	HdrPercentiles  []float64

	ReportPeriod time.Duration
	Debug        bool
	CompressionRatio float64
	TxnLimit     int64

	Metrics *reporter.Metrics

	// HistOut, if non-nil, receives the reporter's periodic histogram
	// snapshot lines.
	HistOut io.Writer

	// StopCh, if non-nil, requests early shutdown the same way a
	// cumulative transaction-limit breach does: the run finishes its
	// current stage's in-flight operations, then stops rather than
	// beginning the next one. A caller typically closes this in response
	// to an OS signal.
	StopCh <-chan struct{}
}

// Run drives kv against stages start to finish using cfg's knobs, blocking
// until every stage has completed (or the run's cumulative transaction
// limit triggers early shutdown). It returns the final ClientData so the
// caller can read end-of-run counters.
func Run(kv client.KvClient, stages stage.Stages, cfg Config) *worker.ClientData {
	cd := newClientData(kv, stages, cfg)

	coord := coordinator.New(cfg.NumThreads)
	tds := make([]*worker.ThreadData, cfg.NumThreads)
	for i := range tds {
		td := &worker.ThreadData{
			Client:   cd,
			Index:    i,
			NumPeers: cfg.NumThreads,
			Rnd:      rand.New(rand.NewSource(int64(i) + 1)),
		}
		td.SetDoWork(true)
		tds[i] = td
	}

	var rep *reporter.Reporter
	if cfg.ReportPeriod > 0 {
		rep = &reporter.Reporter{
			Client:         cd,
			Period:         cfg.ReportPeriod,
			HdrPercentiles: cfg.HdrPercentiles,
			Metrics:        cfg.Metrics,
			HistOut:        cfg.HistOut,
		}
		rep.Start()
		defer rep.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(len(tds))
	for _, td := range tds {
		td := td
		go func() {
			defer wg.Done()
			if cfg.Async {
				worker.RunAsyncWorker(td, coord, cfg.AsyncMaxInFlight)
			} else {
				worker.RunSyncWorker(td, coord)
			}
		}()
	}

	for stageIdx := range stages {
		for _, td := range tds {
			td.SetDoWork(true)
		}
		runStage(coord, tds, stageIdx, &stages[stageIdx], cd, cfg.StopCh)
		if cd.Shutdown.Load() {
			break
		}
	}

	for _, td := range tds {
		td.Shutdown()
	}
	coord.Wait() // release every worker past its final entry barrier so Finished() is observed
	wg.Wait()    // join every worker goroutine before returning

	return cd
}

// runStage drives one stage's lifecycle: entry barrier, optional pause,
// duration sleep (or immediate await for a stage with no nominal
// duration), completion, and exit barrier. do_work is always cleared once
// the stage's duration has elapsed and every party has completed, whether
// or not shutdown was requested: a dice-mix stage's loop has no other way
// to learn that its stage is over.
func runStage(coord *coordinator.Coordinator, tds []*worker.ThreadData, stageIdx int, s *stage.Stage, cd *worker.ClientData, stopCh <-chan struct{}) {
	for _, td := range tds {
		td.StageIdx = stageIdx
	}

	coord.BeginStage()
	coord.Wait() // entry barrier

	if s.PauseS > 0 {
		time.Sleep(time.Duration(rand.Intn(s.PauseS+1)) * time.Second)
	}

	if s.DurationS > 0 {
		deadline := clock.NowMicros() + int64(s.DurationS)*1_000_000
		sleepOutDuration(coord, cd, deadline, stopCh)
	}
	coord.Complete() // the coordinator's own party

	coord.AwaitCompletion()
	select {
	case <-stopCh:
		cd.Shutdown.Store(true)
	default:
	}
	for _, td := range tds {
		td.SetDoWork(false)
	}
	coord.Wait() // exit barrier
}

// pollInterval bounds how promptly a cumulative transaction-limit shutdown
// (set asynchronously by a worker mid-stage) can cut a stage's nominal
// duration short.
const pollInterval = 200 * time.Millisecond

// sleepOutDuration waits out deadline in pollInterval-sized chunks so a
// mid-stage shutdown request - a cumulative transaction-limit breach or a
// close of stopCh - doesn't have to wait for the full nominal duration to
// elapse.
func sleepOutDuration(coord *coordinator.Coordinator, cd *worker.ClientData, deadline int64, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			cd.Shutdown.Store(true)
			return
		default:
		}
		now := clock.NowMicros()
		if now >= deadline || cd.Shutdown.Load() {
			return
		}
		chunk := deadline
		if next := now + pollInterval.Microseconds(); next < chunk {
			chunk = next
		}
		if coord.Sleep(chunk) == coordinator.Interrupted {
			return
		}
	}
}

func newClientData(kv client.KvClient, stages stage.Stages, cfg Config) *worker.ClientData {
	cd := &worker.ClientData{
		Client:           kv,
		Stages:           stages,
		Debug:            cfg.Debug,
		CompressionRatio: cfg.CompressionRatio,
		TxnLimit:         cfg.TxnLimit,
	}
	if len(cfg.HistogramRanges) > 0 {
		cd.ReadHist, _ = histogram.New(0, cfg.HistogramRanges)
		cd.WriteHist, _ = histogram.New(0, cfg.HistogramRanges)
		cd.UDFHist, _ = histogram.New(0, cfg.HistogramRanges)
	}
	if cfg.HdrEnabled {
		cd.ReadHdr = hdr.New(cfg.HdrMinValue, cfg.HdrMaxValue, cfg.HdrSigFigs)
		cd.WriteHdr = hdr.New(cfg.HdrMinValue, cfg.HdrMaxValue, cfg.HdrSigFigs)
		cd.UDFHdr = hdr.New(cfg.HdrMinValue, cfg.HdrMaxValue, cfg.HdrSigFigs)
	}
	return cd
}
