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

// Package stage defines the Stage/Stages data model: an immutable
// description of one contiguous time window of uniform workload settings,
// and the ordered sequence of stages a run executes.
package stage

import "kvbench/internal/bench/objspec"

// WorkloadKind tags the sum type of workload mixes a stage can run.
type WorkloadKind int

const (
	// InsertLinear writes every key in [KeyStart, KeyEnd) exactly once,
	// striped across workers.
	InsertLinear WorkloadKind = iota
	// ReadUpdate reads with probability ReadPct, else updates (put).
	ReadUpdate
	// ReadReplace reads with probability ReadPct, else fully
	// regenerates and replaces the record.
	ReadReplace
	// ReadUpdateFn reads, writes, or invokes a UDF per ReadPct/WritePct.
	ReadUpdateFn
	// ReadUpdateDelete reads, writes, or deletes per ReadPct/WritePct.
	ReadUpdateDelete
	// DeleteBin deletes every key in [KeyStart, KeyEnd), striped across
	// workers.
	DeleteBin
)

// UDFSpec names the user-defined function a ReadUpdateFn stage invokes on
// its "write" branch, together with its argument spec.
type UDFSpec struct {
	Module   string
	Function string
	ArgsSpec *objspec.Spec
}

// Stage is one contiguous, immutable time window of uniform workload
// settings. Stage indices are 1-based in external surfaces (YAML, CLI,
// reporter output) and 0-based internally (slice index into a Stages).
type Stage struct {
	Desc string

	// DurationS is the nominal stage length in seconds; 0 means "run
	// until the key range is exhausted" (only meaningful for InsertLinear
	// and DeleteBin).
	DurationS int
	// TPS is the target transactions/sec per worker; 0 means
	// unthrottled.
	TPS int
	// TTLS is the record expiration time in seconds passed to KvClient
	// policies; 0 means "never expires" / server default.
	TTLS int

	KeyStart int64
	KeyEnd   int64

	// PauseS is the upper bound (inclusive) of a uniformly random pause,
	// in seconds, that the coordinator sleeps after the workers have
	// started and before it starts timing the stage's duration.
	PauseS int

	BatchSize int
	Async     bool
	// Random selects whether each operation regenerates its payload
	// (true) or reuses one fixed record for the whole stage (false).
	Random bool

	Workload WorkloadKind
	ReadPct  int
	WritePct int

	ObjSpec *objspec.Spec

	// ReadBins, if non-nil, restricts reads to these bin names in
	// declaration order; nil means read the whole record.
	ReadBins []string
	// WriteBinIndices, if non-nil, restricts writes to these 0-based
	// generated-bin indices into ObjSpec; nil means write every bin.
	WriteBinIndices []int

	UDF *UDFSpec
}

// Stages is the ordered, finite sequence of stages a run executes.
type Stages []Stage

// Bounded reports whether s has a completion condition external to its
// own operations (a nominal duration), as opposed to one determined by
// exhausting its key range.
func (s Stage) Bounded() bool {
	switch s.Workload {
	case InsertLinear, DeleteBin:
		return false
	default:
		return true
	}
}
