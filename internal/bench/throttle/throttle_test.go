package throttle

import "testing"

func TestConvergesToTargetPeriod(t *testing.T) {
	const target = 1000
	th := New(target)

	rec := int64(0)
	var sum int64
	const samples = 1000
	for i := 0; i < samples; i++ {
		pause := th.PauseFor(rec)
		if i > 0 {
			sum += pause
		}
		rec += pause
	}
	mean := float64(sum) / float64(samples-1)
	if mean < 990 || mean > 1010 {
		t.Fatalf("mean pause = %v, want within [990,1010] of target %d", mean, target)
	}
}

func TestResetSkipsOneUpdate(t *testing.T) {
	th := New(1000)
	th.PauseFor(0)
	before := th.PauseFor(1000)

	// Simulate a large off-cycle gap (e.g. a reporter tick) that should
	// not be folded into the running average.
	th.Reset(50_000)
	pause := th.PauseFor(51_000)
	if pause != before {
		t.Fatalf("pause after reset = %d, want %d as before the reset (reset must not corrupt avgFnDelay)", pause, before)
	}
}
