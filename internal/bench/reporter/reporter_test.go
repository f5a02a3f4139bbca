package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/worker"
)

func TestTickDrainsCountersAndWritesHistogramSnapshot(t *testing.T) {
	readHist, err := histogram.New(0, []histogram.Range{{UpperBound: 1000, Width: 100}})
	if err != nil {
		t.Fatalf("histogram.New: %v", err)
	}
	readHist.Add(50)
	readHist.Add(500)

	cd := &worker.ClientData{ReadHist: readHist}
	cd.Read.Hit.Add(10)
	cd.Read.Count.Add(10)

	var histOut bytes.Buffer
	r := &Reporter{Client: cd, Period: time.Second, HistOut: &histOut}
	r.tick()

	snap := readHist.SnapshotAndClear()
	if snap.Total != 0 {
		t.Fatalf("expected histogram cleared after tick, total=%d", snap.Total)
	}

	if !strings.Contains(histOut.String(), "read") {
		t.Fatalf("histogram output missing read line: %q", histOut.String())
	}

	after := cd.Read.FetchAndZero()
	if after.Hit != 0 || after.Count != 0 {
		t.Fatalf("counters should already be zeroed by tick, got %+v", after)
	}
}

func TestAddTxnSetsShutdownAtCumulativeLimit(t *testing.T) {
	cd := &worker.ClientData{TxnLimit: 5}
	cd.AddTxn(5)
	if !cd.Shutdown.Load() {
		t.Fatal("expected Shutdown set once TxnLimit reached")
	}
}
