package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecorder_Empty(t *testing.T) {
	snap := NewRecorder().Snapshot()

	if snap.Total() != 0 {
		t.Errorf("Total() = %d, want 0", snap.Total())
	}
	if snap.Latency != (Distribution{}) {
		t.Errorf("Latency = %+v, want zero value", snap.Latency)
	}
}

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()
	r.RecordSent(0, 10*time.Millisecond, true)
	r.RecordSent(time.Second, 20*time.Millisecond, true)
	r.RecordSent(0, 30*time.Millisecond, false)
	r.RecordRejected()

	snap := r.Snapshot()
	if snap.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", snap.Succeeded)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if snap.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", snap.Rejected)
	}
	if snap.Total() != 4 {
		t.Errorf("Total() = %d, want 4", snap.Total())
	}
	if snap.Latency.Count != 3 || snap.GateWait.Count != 3 {
		t.Errorf("histogram counts = %d/%d, want 3/3", snap.Latency.Count, snap.GateWait.Count)
	}
}

func TestRecorder_Percentiles(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.RecordSent(0, time.Duration(i)*time.Millisecond, true)
	}

	lat := r.Snapshot().Latency
	within := func(name string, got, want time.Duration) {
		t.Helper()
		tolerance := want / 100
		if got < want-tolerance || got > want+tolerance {
			t.Errorf("%s = %v, want ~%v", name, got, want)
		}
	}

	within("Min", lat.Min, time.Millisecond)
	within("P50", lat.P50, 50*time.Millisecond)
	within("P90", lat.P90, 90*time.Millisecond)
	within("P99", lat.P99, 99*time.Millisecond)
	within("Max", lat.Max, 100*time.Millisecond)
	within("Mean", lat.Mean, 50500*time.Microsecond)
}

func TestRecorder_WaitFloorAndCeiling(t *testing.T) {
	r := NewRecorder()
	r.RecordWait(0)
	r.RecordWait(2 * time.Hour)

	wait := r.Snapshot().GateWait
	if wait.Min != time.Microsecond {
		t.Errorf("Min = %v, want 1µs floor", wait.Min)
	}
	if wait.Max < 59*time.Minute || wait.Max > 61*time.Minute {
		t.Errorf("Max = %v, want ~1h ceiling", wait.Max)
	}
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder()
	r.RecordSent(time.Millisecond, time.Millisecond, true)
	r.RecordRejected()
	r.Reset()

	snap := r.Snapshot()
	if snap.Total() != 0 || snap.GateWait.Count != 0 {
		t.Errorf("Reset left data behind: %+v", snap)
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.RecordSent(time.Duration(j)*time.Microsecond, time.Millisecond, j%2 == 0)
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Succeeded+snap.Failed != 4000 {
		t.Errorf("recorded %d, want 4000", snap.Succeeded+snap.Failed)
	}
	if snap.Latency.Count != 4000 {
		t.Errorf("Latency.Count = %d, want 4000", snap.Latency.Count)
	}
}
