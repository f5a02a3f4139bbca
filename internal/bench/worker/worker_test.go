package worker

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"kvbench/internal/bench/client"
	"kvbench/internal/bench/coordinator"
	"kvbench/internal/bench/histogram"
	"kvbench/internal/bench/objspec"
	"kvbench/internal/bench/stage"
)

func testRanges() []histogram.Range {
	return []histogram.Range{{UpperBound: 64000, Width: 1000}}
}

func newTestClientData(t *testing.T, stages stage.Stages) *ClientData {
	t.Helper()
	readHist, err := histogram.New(0, testRanges())
	if err != nil {
		t.Fatalf("histogram.New: %v", err)
	}
	writeHist, err := histogram.New(0, testRanges())
	if err != nil {
		t.Fatalf("histogram.New: %v", err)
	}
	return &ClientData{
		Client:    client.NewMock(),
		Stages:    stages,
		ReadHist:  readHist,
		WriteHist: writeHist,
	}
}

// TestLinearInsertCompletesExactlyOnceAtKeyRangeExhaustion exercises
// scenario 5: four workers striping a 100-key insert-linear stage must
// together write every key in the range, and each worker's Complete() must
// land so the coordinator's AwaitCompletion releases the stage.
func TestLinearInsertCompletesExactlyOnceAtKeyRangeExhaustion(t *testing.T) {
	spec, err := objspec.Parse("I")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stages := stage.Stages{{
		Workload: stage.InsertLinear,
		KeyStart: 0,
		KeyEnd:   100,
		ObjSpec:  spec,
	}}
	cd := newTestClientData(t, stages)
	nWorkers := 4
	coord := coordinator.New(nWorkers)

	tds := make([]*ThreadData, nWorkers)
	done := make(chan struct{}, nWorkers)
	for i := 0; i < nWorkers; i++ {
		td := &ThreadData{Client: cd, Index: i, NumPeers: nWorkers, Rnd: rand.New(rand.NewSource(int64(i)))}
		td.SetDoWork(true)
		tds[i] = td
		go func() {
			RunSyncWorker(td, coord)
			done <- struct{}{}
		}()
	}

	coord.BeginStage()
	coord.Wait()    // release workers into the stage
	coord.Complete() // the coordinator's own party: this stage has no nominal duration to sleep out
	coord.AwaitCompletion()
	coord.Wait() // release workers out of the stage

	m := cd.Client.(*client.Mock)
	for k := int64(0); k < 100; k++ {
		if _, err := m.Get(context.Background(), k, client.Policy{}); err != nil {
			t.Errorf("key %d missing after insert-linear stage: %v", k, err)
		}
	}

	for _, td := range tds {
		td.Shutdown()
	}
	coord.Wait() // release workers past the next stage's entry barrier to observe Finished

	for i := 0; i < nWorkers; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker goroutine did not exit after Shutdown")
		}
	}
}

// TestRollDiceConvergesToConfiguredMix is scenario 6: over many rolls the
// observed read/write split for a ReadUpdate stage should approach
// ReadPct within a generous tolerance.
func TestRollDiceConvergesToConfiguredMix(t *testing.T) {
	s := &stage.Stage{Workload: stage.ReadUpdate, ReadPct: 70}
	rnd := rand.New(rand.NewSource(42))
	const n = 100000
	reads := 0
	for i := 0; i < n; i++ {
		if RollDice(s, rnd) == OpRead {
			reads++
		}
	}
	pct := float64(reads) / n * 100
	if pct < 68 || pct > 72 {
		t.Fatalf("read pct = %.2f, want ~70", pct)
	}
}

func TestRollDiceThreeWaySplit(t *testing.T) {
	s := &stage.Stage{Workload: stage.ReadUpdateFn, ReadPct: 50, WritePct: 30}
	rnd := rand.New(rand.NewSource(7))
	const n = 100000
	var reads, writes, udfs int
	for i := 0; i < n; i++ {
		switch RollDice(s, rnd) {
		case OpRead:
			reads++
		case OpWrite:
			writes++
		case OpUDF:
			udfs++
		}
	}
	total := reads + writes + udfs
	if total != n {
		t.Fatalf("unexpected op outside read/write/udf for ReadUpdateFn")
	}
	readPct := float64(reads) / n * 100
	writePct := float64(writes) / n * 100
	if readPct < 48 || readPct > 52 {
		t.Fatalf("read pct = %.2f, want ~50", readPct)
	}
	if writePct < 28 || writePct > 32 {
		t.Fatalf("write pct = %.2f, want ~30", writePct)
	}
}

func TestThreadDataShutdownOrdersFinishedBeforeDoWork(t *testing.T) {
	td := &ThreadData{}
	td.SetDoWork(true)
	td.Shutdown()
	if td.DoWork() {
		t.Fatal("do_work should be cleared after Shutdown")
	}
	if !td.Finished() {
		t.Fatal("finished should be set after Shutdown")
	}
}

func TestReadUpdateStageRunsAgainstMockClient(t *testing.T) {
	spec, err := objspec.Parse("I,S10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stages := stage.Stages{{
		Workload: stage.ReadUpdate,
		ReadPct:  50,
		KeyStart: 0,
		KeyEnd:   10,
		Random:   true,
		ObjSpec:  spec,
	}}
	cd := newTestClientData(t, stages)
	coord := coordinator.New(1)
	td := &ThreadData{Client: cd, Index: 0, NumPeers: 1, Rnd: rand.New(rand.NewSource(1))}
	td.SetDoWork(true)

	done := make(chan struct{})
	go func() {
		RunSyncWorker(td, coord)
		close(done)
	}()

	coord.BeginStage()
	coord.Wait()
	coord.Complete()       // the coordinator's own party
	coord.AwaitCompletion() // returns immediately: the worker's own Complete() already landed
	time.Sleep(10 * time.Millisecond)
	td.Shutdown()
	coord.Wait() // exit barrier
	coord.Wait() // release the worker past the next entry barrier to observe Finished

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker goroutine did not exit after Shutdown")
	}

	snap := cd.Read.FetchAndZero()
	if snap.Count == 0 {
		t.Fatal("expected at least one read/write op to have executed")
	}
}
