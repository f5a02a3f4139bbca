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

// Package config parses the YAML stage-file format into the core's Stage
// data model. The CLI flags are defined in cmd/kvbench.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/stage"
)

// rawStage mirrors the recognised YAML keys for one stage, before they are
// resolved into a stage.Stage.
type rawStage struct {
	Stage      int    `yaml:"stage"`
	Desc       string `yaml:"desc"`
	Duration   int    `yaml:"duration"`
	TPS        int    `yaml:"tps"`
	Expiration int    `yaml:"expiration-time"`
	KeyStart   int64  `yaml:"key-start"`
	KeyEnd     int64  `yaml:"key-end"`
	Pause      int    `yaml:"pause"`
	BatchSize  int    `yaml:"batch-size"`
	Async      bool   `yaml:"async"`
	Random     bool   `yaml:"random"`
	Workload   string `yaml:"workload"`
	ObjectSpec string `yaml:"object-spec"`
	ReadBins   []string `yaml:"read-bins"`
	WriteBins  []int    `yaml:"write-bins"`
	UDF        *rawUDF  `yaml:"udf"`
}

type rawUDF struct {
	Module   string `yaml:"module"`
	Function string `yaml:"function"`
	Args     string `yaml:"args"`
}

// ParseStagesYAML parses a YAML document containing a sequence of stage
// objects into a stage.Stages, resolving each stage's object-spec and
// workload-mix shorthand along the way.
func ParseStagesYAML(data []byte) (stage.Stages, error) {
	var raws []rawStage
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("config: parsing stage YAML: %w", err)
	}
	stages := make(stage.Stages, 0, len(raws))
	for i, r := range raws {
		s, err := resolveStage(r)
		if err != nil {
			return nil, fmt.Errorf("config: stage %d: %w", i+1, err)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

func resolveStage(r rawStage) (stage.Stage, error) {
	s := stage.Stage{
		Desc:            r.Desc,
		DurationS:       r.Duration,
		TPS:             r.TPS,
		TTLS:            r.Expiration,
		KeyStart:        r.KeyStart,
		KeyEnd:          r.KeyEnd,
		PauseS:          r.Pause,
		BatchSize:       r.BatchSize,
		Async:           r.Async,
		Random:          r.Random,
		ReadBins:        r.ReadBins,
		WriteBinIndices: r.WriteBins,
	}
	if s.BatchSize == 0 {
		s.BatchSize = 1
	}
	if r.ObjectSpec != "" {
		spec, err := objspec.Parse(r.ObjectSpec)
		if err != nil {
			return stage.Stage{}, fmt.Errorf("object-spec: %w", err)
		}
		s.ObjSpec = spec
	}
	if err := resolveWorkload(&s, r.Workload); err != nil {
		return stage.Stage{}, err
	}
	if r.UDF != nil {
		u := &stage.UDFSpec{Module: r.UDF.Module, Function: r.UDF.Function}
		if r.UDF.Args != "" {
			argsSpec, err := objspec.Parse(r.UDF.Args)
			if err != nil {
				return stage.Stage{}, fmt.Errorf("udf.args: %w", err)
			}
			u.ArgsSpec = argsSpec
		}
		s.UDF = u
	}
	return s, nil
}

// resolveWorkload parses the compact "I" / "RU[,pct]" / "RR[,pct]" /
// "RUF[,read_pct,write_pct]" / "RUD[,read_pct,write_pct]" / "DB" shorthand
// into s.Workload/ReadPct/WritePct, filling in the documented defaults
// (RU=50, RR=100, RUF=65/25, RUD=65/25) when percentages are omitted.
func resolveWorkload(s *stage.Stage, raw string) error {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	kind := parts[0]
	rest := parts[1:]

	pct := func(idx int, def int) (int, error) {
		if idx >= len(rest) || rest[idx] == "" {
			return def, nil
		}
		v, err := strconv.Atoi(rest[idx])
		if err != nil {
			return 0, fmt.Errorf("workload %q: malformed percentage %q: %w", raw, rest[idx], err)
		}
		return v, nil
	}

	switch kind {
	case "I", "":
		s.Workload = stage.InsertLinear
	case "RU":
		p, err := pct(0, 50)
		if err != nil {
			return err
		}
		s.Workload = stage.ReadUpdate
		s.ReadPct = p
	case "RR":
		p, err := pct(0, 100)
		if err != nil {
			return err
		}
		s.Workload = stage.ReadReplace
		s.ReadPct = p
	case "RUF":
		rp, err := pct(0, 65)
		if err != nil {
			return err
		}
		wp, err := pct(1, 25)
		if err != nil {
			return err
		}
		s.Workload = stage.ReadUpdateFn
		s.ReadPct, s.WritePct = rp, wp
	case "RUD":
		rp, err := pct(0, 65)
		if err != nil {
			return err
		}
		wp, err := pct(1, 25)
		if err != nil {
			return err
		}
		s.Workload = stage.ReadUpdateDelete
		s.ReadPct, s.WritePct = rp, wp
	case "DB":
		s.Workload = stage.DeleteBin
	default:
		return fmt.Errorf("unrecognised workload kind %q", kind)
	}
	return nil
}
