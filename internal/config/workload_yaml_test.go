package config

import (
	"testing"

	"kvbench/internal/bench/stage"
)

const sampleYAML = `
- stage: 1
  desc: "load"
  workload: I
  key-start: 1
  key-end: 10001
  object-spec: "I4,S10"
- stage: 2
  desc: "mixed"
  duration: 60
  tps: 5000
  workload: "RU,70"
  object-spec: "I4,S10"
- stage: 3
  desc: "defaults"
  duration: 30
  workload: RUF
  object-spec: "I4"
`

func TestParseStagesYAML(t *testing.T) {
	stages, err := ParseStagesYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseStagesYAML: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("len(stages) = %d, want 3", len(stages))
	}

	if stages[0].Workload != stage.InsertLinear {
		t.Errorf("stage 1 workload = %v, want InsertLinear", stages[0].Workload)
	}
	if stages[0].KeyEnd-stages[0].KeyStart != 10000 {
		t.Errorf("stage 1 key range = %d, want 10000", stages[0].KeyEnd-stages[0].KeyStart)
	}

	if stages[1].Workload != stage.ReadUpdate || stages[1].ReadPct != 70 {
		t.Errorf("stage 2 = %+v, want ReadUpdate with ReadPct=70", stages[1])
	}

	if stages[2].Workload != stage.ReadUpdateFn || stages[2].ReadPct != 65 || stages[2].WritePct != 25 {
		t.Errorf("stage 3 = %+v, want ReadUpdateFn with default 65/25 split", stages[2])
	}
}

func TestResolveWorkloadRejectsUnknownKind(t *testing.T) {
	s := &stage.Stage{}
	if err := resolveWorkload(s, "BOGUS"); err == nil {
		t.Error("expected error for unrecognised workload kind")
	}
}
