// Package metrics aggregates gate wait and registry latency with HDR histograms.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histogramMin     = 1             // 1 microsecond
	histogramMax     = 3_600_000_000 // 1 hour in microseconds
	histogramSigFigs = 3
)

// Recorder collects per-submission timings.
//
// # Thread Safety
//
// Recorder is safe for concurrent use. Counters are atomic and the
// histograms share one mutex, since hdrhistogram is not thread-safe.
type Recorder struct {
	mu       sync.Mutex
	waitHist *hdrhistogram.Histogram
	latHist  *hdrhistogram.Histogram

	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Distribution summarises one histogram.
type Distribution struct {
	Count int64         `json:"count" yaml:"count"`
	Min   time.Duration `json:"min" yaml:"min"`
	Mean  time.Duration `json:"mean" yaml:"mean"`
	P50   time.Duration `json:"p50" yaml:"p50"`
	P90   time.Duration `json:"p90" yaml:"p90"`
	P99   time.Duration `json:"p99" yaml:"p99"`
	Max   time.Duration `json:"max" yaml:"max"`
}

// Snapshot is a point-in-time copy of the recorder.
type Snapshot struct {
	Succeeded int64        `json:"succeeded" yaml:"succeeded"`
	Failed    int64        `json:"failed" yaml:"failed"`
	Rejected  int64        `json:"rejected" yaml:"rejected"`
	GateWait  Distribution `json:"gateWait" yaml:"gateWait"`
	Latency   Distribution `json:"latency" yaml:"latency"`
}

// Total returns every recorded outcome.
func (s Snapshot) Total() int64 {
	return s.Succeeded + s.Failed + s.Rejected
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		waitHist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		latHist:  hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// RecordSent records a request that reached the registry. wait is the
// admission wait and latency the round trip.
func (r *Recorder) RecordSent(wait, latency time.Duration, success bool) {
	r.mu.Lock()
	r.waitHist.RecordValue(clamp(wait))
	r.latHist.RecordValue(clamp(latency))
	r.mu.Unlock()

	if success {
		r.succeeded.Add(1)
	} else {
		r.failed.Add(1)
	}
}

// RecordError records a send that failed before a response arrived.
func (r *Recorder) RecordError() {
	r.failed.Add(1)
}

// RecordRejected records a submission that never reached the registry:
// invalid document, open circuit, or a context that ended in the queue.
func (r *Recorder) RecordRejected() {
	r.rejected.Add(1)
}

// RecordWait adds an admission wait without a request, as the simulate
// command does.
func (r *Recorder) RecordWait(wait time.Duration) {
	r.mu.Lock()
	r.waitHist.RecordValue(clamp(wait))
	r.mu.Unlock()
}

// Snapshot returns the current aggregates.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	wait := distribution(r.waitHist)
	latency := distribution(r.latHist)
	r.mu.Unlock()

	return Snapshot{
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Rejected:  r.rejected.Load(),
		GateWait:  wait,
		Latency:   latency,
	}
}

// Reset clears all data.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.waitHist.Reset()
	r.latHist.Reset()
	r.mu.Unlock()

	r.succeeded.Store(0)
	r.failed.Store(0)
	r.rejected.Store(0)
}

func distribution(h *hdrhistogram.Histogram) Distribution {
	if h.TotalCount() == 0 {
		return Distribution{}
	}
	return Distribution{
		Count: h.TotalCount(),
		Min:   micros(h.Min()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   micros(h.ValueAtQuantile(50)),
		P90:   micros(h.ValueAtQuantile(90)),
		P99:   micros(h.ValueAtQuantile(99)),
		Max:   micros(h.Max()),
	}
}

// clamp converts d to microseconds inside the histogram range. Zero waits
// are stored as the 1µs floor.
func clamp(d time.Duration) int64 {
	v := d.Microseconds()
	if v < histogramMin {
		return histogramMin
	}
	if v > histogramMax {
		return histogramMax
	}
	return v
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
