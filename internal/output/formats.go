package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/crpt/internal/gate"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/submit"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// ResultData is the encoded form of one submission.
type ResultData struct {
	Name       string            `json:"name" yaml:"name"`
	OK         bool              `json:"ok" yaml:"ok"`
	RequestID  string            `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	StatusCode int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	GateWaitMs float64           `json:"gateWaitMs" yaml:"gateWaitMs"`
	LatencyMs  float64           `json:"latencyMs" yaml:"latencyMs"`
	Extracted  map[string]string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// DistributionData is metrics.Distribution in milliseconds.
type DistributionData struct {
	Count  int64   `json:"count" yaml:"count"`
	MinMs  float64 `json:"minMs" yaml:"minMs"`
	MeanMs float64 `json:"meanMs" yaml:"meanMs"`
	P50Ms  float64 `json:"p50Ms" yaml:"p50Ms"`
	P90Ms  float64 `json:"p90Ms" yaml:"p90Ms"`
	P99Ms  float64 `json:"p99Ms" yaml:"p99Ms"`
	MaxMs  float64 `json:"maxMs" yaml:"maxMs"`
}

// SummaryData holds batch totals.
type SummaryData struct {
	Total     int64            `json:"total" yaml:"total"`
	Succeeded int64            `json:"succeeded" yaml:"succeeded"`
	Failed    int64            `json:"failed" yaml:"failed"`
	Rejected  int64            `json:"rejected" yaml:"rejected"`
	Capacity  int              `json:"capacity" yaml:"capacity"`
	Window    string           `json:"window" yaml:"window"`
	Breaker   string           `json:"breaker" yaml:"breaker"`
	GateWait  DistributionData `json:"gateWait" yaml:"gateWait"`
	Latency   DistributionData `json:"latency" yaml:"latency"`
}

// Report is the encoded output of a submit run.
type Report struct {
	Results   []ResultData `json:"results" yaml:"results"`
	Summary   SummaryData  `json:"summary" yaml:"summary"`
	Timestamp string       `json:"timestamp" yaml:"timestamp"`
}

// NewReport builds a Report from run data.
func NewReport(results []submit.Result, snap metrics.Snapshot, stats gate.Stats, breaker string) Report {
	data := make([]ResultData, len(results))
	for i, r := range results {
		data[i] = ResultData{
			Name:       displayName(r),
			OK:         r.OK(),
			RequestID:  r.RequestID,
			StatusCode: r.StatusCode,
			GateWaitMs: millis(r.GateWait),
			LatencyMs:  millis(r.Latency),
			Extracted:  r.Extracted,
			Error:      r.Error,
		}
	}

	return Report{
		Results: data,
		Summary: SummaryData{
			Total:     snap.Total(),
			Succeeded: snap.Succeeded,
			Failed:    snap.Failed,
			Rejected:  snap.Rejected,
			Capacity:  stats.Capacity,
			Window:    stats.Window.String(),
			Breaker:   breaker,
			GateWait:  distributionData(snap.GateWait),
			Latency:   distributionData(snap.Latency),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// FormatResults encodes a report as JSON or YAML.
func FormatResults(format OutputFormat, report Report) (string, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
		return string(out) + "\n", nil
	case FormatYAML:
		out, err := yaml.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("format %q is not a structured format", format)
	}
}

func distributionData(d metrics.Distribution) DistributionData {
	return DistributionData{
		Count:  d.Count,
		MinMs:  millis(d.Min),
		MeanMs: millis(d.Mean),
		P50Ms:  millis(d.P50),
		P90Ms:  millis(d.P90),
		P99Ms:  millis(d.P99),
		MaxMs:  millis(d.Max),
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
