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

// Package reporter periodically drains the run's counters and histograms
// and turns them into the stdout summary line, the histogram output file,
// and (when enabled) a set of Prometheus series.
package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kvbench/internal/bench/hdr"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/worker"
)

// Reporter ticks once every Period, draining ClientData's counters and
// histograms and reporting them. Grounded on the teacher's ticker/select/
// stopCh worker-loop shape: Start spawns one goroutine, Stop closes a
// channel and waits for it to exit.
type Reporter struct {
	Client *worker.ClientData
	Period time.Duration

	// HdrPercentiles are printed, in order, for each op class with a
	// non-nil HDR histogram.
	HdrPercentiles []float64

	// HistOut, if non-nil, receives one line per op class per tick for
	// every op class with a non-nil linear histogram.
	HistOut io.Writer

	Metrics *Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// Start spawns the reporter's ticking goroutine. Stop must be called
// exactly once to release it.
func (r *Reporter) Start() {
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.run()
}

// Stop requests the reporter goroutine exit and blocks until it has.
func (r *Reporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.Period)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick performs one reporting cycle: steps 1-6 of the reporter contract.
func (r *Reporter) tick() {
	periodSecs := r.Period.Seconds()

	read := r.Client.Read.FetchAndZero()
	write := r.Client.Write.FetchAndZero()
	udf := r.Client.UDF.FetchAndZero()

	r.printSummaryLine("read", read, periodSecs)
	r.printSummaryLine("write", write, periodSecs)
	if udf.Count > 0 || udf.Error > 0 || udf.Timeout > 0 {
		r.printSummaryLine("udf", udf, periodSecs)
	}

	r.snapshotHist("read", r.Client.ReadHist, periodSecs)
	r.snapshotHist("write", r.Client.WriteHist, periodSecs)
	r.snapshotHist("udf", r.Client.UDFHist, periodSecs)

	r.printHdr("read", r.Client.ReadHdr)
	r.printHdr("write", r.Client.WriteHdr)
	r.printHdr("udf", r.Client.UDFHdr)

	if r.Metrics != nil {
		r.Metrics.observe("read", read, periodSecs)
		r.Metrics.observe("write", write, periodSecs)
		r.Metrics.observe("udf", udf, periodSecs)
	}

	if r.Client.TxnLimit > 0 {
		// AddTxn (called from the worker hot path) already sets
		// Shutdown once the cumulative count is reached; nothing to do
		// here beyond documenting that step 6 of the contract is
		// satisfied on the write path, not the read-back path.
		_ = r.Client.Shutdown.Load()
	}
}

func (r *Reporter) printSummaryLine(op string, s worker.CounterSnapshot, periodSecs float64) {
	tps := float64(s.Count) / periodSecs
	fmt.Printf("%-6s tps=%-10.1f hit=%-8d miss=%-8d timeout=%-6d error=%-6d\n",
		op, tps, s.Hit, s.Miss, s.Timeout, s.Error)
}

// snapshotHist drains h and, if HistOut is set, appends one line in the
// "<name> <asctime>, <period_s>, <total>, <bucket_value>:<count>, ..."
// format, omitting zero-count buckets.
func (r *Reporter) snapshotHist(op string, h *histogram.Histogram, periodSecs float64) {
	if h == nil {
		return
	}
	snap := h.SnapshotAndClear()
	if r.HistOut == nil {
		return
	}
	fmt.Fprintf(r.HistOut, "%s %s, %g, %d", op, time.Now().Format(time.ANSIC), periodSecs, snap.Total)
	if snap.Underflow > 0 {
		fmt.Fprintf(r.HistOut, ", underflow:%d", snap.Underflow)
	}
	for _, b := range snap.Buckets {
		fmt.Fprintf(r.HistOut, ", %d:%d", b.UpperBound, b.Count)
	}
	if snap.Overflow > 0 {
		fmt.Fprintf(r.HistOut, ", overflow:%d", snap.Overflow)
	}
	fmt.Fprintln(r.HistOut)
}

func (r *Reporter) printHdr(op string, h *hdr.Histogram) {
	if h == nil || len(r.HdrPercentiles) == 0 {
		return
	}
	fmt.Printf("%-6s hdr", op)
	for _, p := range r.HdrPercentiles {
		fmt.Printf(" p%g=%d", p, h.ValueAtPercentile(p))
	}
	fmt.Println()
}

// Metrics is the Prometheus surface: one counter vector (by op and
// result) and one gauge vector (tps by op), registered against a
// caller-supplied registry so cmd/kvbench controls whether/how they are
// exposed.
type Metrics struct {
	ops *prometheus.CounterVec
	tps *prometheus.GaugeVec
}

// NewMetrics registers kvbench_ops_total and kvbench_tps against reg and
// returns a Metrics ready to pass to a Reporter.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kvbench_ops_total",
		Help: "Total operations by class and outcome.",
	}, []string{"op", "result"})
	tps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kvbench_tps",
		Help: "Observed transactions per second over the last reporting period.",
	}, []string{"op"})
	reg.MustRegister(ops, tps)
	return &Metrics{ops: ops, tps: tps}
}

func (m *Metrics) observe(op string, s worker.CounterSnapshot, periodSecs float64) {
	m.ops.WithLabelValues(op, "hit").Add(float64(s.Hit))
	m.ops.WithLabelValues(op, "miss").Add(float64(s.Miss))
	m.ops.WithLabelValues(op, "timeout").Add(float64(s.Timeout))
	m.ops.WithLabelValues(op, "error").Add(float64(s.Error))
	m.tps.WithLabelValues(op).Set(float64(s.Count) / periodSecs)
}
