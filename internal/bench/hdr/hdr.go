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

// Package hdr adapts github.com/HdrHistogram/hdrhistogram-go behind the
// narrow record/percentile/snapshot surface the benchmark core expects from
// its high-dynamic-range histogram collaborator.
package hdr

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram wraps an hdrhistogram.Histogram with a mutex, since the
// upstream type is not safe for concurrent RecordValue and the core records
// from every worker goroutine.
type Histogram struct {
	mu  sync.Mutex
	hdr *hdrhistogram.Histogram
}

// New returns a Histogram covering [minValue, maxValue] with the given
// number of significant decimal digits of precision (1-5).
func New(minValue, maxValue int64, sigFigs int) *Histogram {
	return &Histogram{hdr: hdrhistogram.New(minValue, maxValue, sigFigs)}
}

// Record adds a latency sample, in microseconds. Values outside the
// configured range are clamped to the boundary rather than dropped, so a
// single outlier never silently vanishes from the count.
func (h *Histogram) Record(v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.hdr.RecordValue(v); err != nil {
		lo := h.hdr.LowestTrackableValue()
		hi := h.hdr.HighestTrackableValue()
		switch {
		case v < lo:
			_ = h.hdr.RecordValue(lo)
		case v > hi:
			_ = h.hdr.RecordValue(hi)
		}
	}
}

// ValueAtPercentile returns the value at the given percentile (0-100) of
// all samples recorded since construction.
func (h *Histogram) ValueAtPercentile(p float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hdr.ValueAtPercentile(p)
}

// Snapshot returns a point-in-time copy of the underlying distribution
// without resetting it; the HDR histogram accumulates across the whole run
// rather than per reporting period.
func (h *Histogram) Snapshot() *hdrhistogram.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hdr.Export()
}

// TotalCount returns the number of samples recorded.
func (h *Histogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hdr.TotalCount()
}
