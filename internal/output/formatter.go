// Package output renders submissions, batch summaries and gate simulations.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/crpt/internal/gate"
	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/submit"
)

// Formatter renders human-readable text.
type Formatter struct {
	Verbose bool
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	scheme := DefaultColorScheme()
	if noColor {
		scheme = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  scheme,
	}
}

// FormatRequest renders an outbound request. The Authorization header is
// masked.
func (f *Formatter) FormatRequest(req *crpthttp.Request, baseURL string) string {
	var buf strings.Builder

	fullURL := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.QueryParams) > 0 {
		fullURL += "?" + req.QueryParams.Encode()
	}

	fmt.Fprintf(&buf, "▶ REQUEST: %s %s\n", f.scheme.Method.Sprint(req.Method), f.scheme.URL.Sprint(fullURL))

	if len(req.Headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(req.Headers) {
			value := req.Headers[key]
			if strings.EqualFold(key, "Authorization") {
				value = maskSecret(value)
			}
			fmt.Fprintf(&buf, "    %s: %s\n", f.scheme.Label.Sprint(key), value)
		}
	}

	if f.Verbose && req.Body != nil {
		buf.WriteString("  Body:\n")
		switch body := req.Body.(type) {
		case string:
			buf.WriteString(indentJSON(body))
		case []byte:
			buf.WriteString(indentJSON(string(body)))
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				fmt.Fprintf(&buf, "%v", body)
			} else {
				buf.WriteString(indentJSON(string(encoded)))
			}
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResult renders one submission outcome.
func (f *Formatter) FormatResult(res submit.Result) string {
	var buf strings.Builder

	icon := SuccessIcon(f.NoColor)
	if !res.OK() {
		icon = ErrorIcon(f.NoColor)
	}

	status := "no response"
	if res.StatusCode != 0 {
		status = f.scheme.Status(res.StatusCode).Sprint(res.StatusCode)
	}

	fmt.Fprintf(&buf, "%s %s  %s  wait %s  latency %s\n",
		icon,
		f.scheme.Highlight.Sprint(displayName(res)),
		status,
		formatDuration(res.GateWait),
		formatDuration(res.Latency))

	if res.RequestID != "" && f.Verbose {
		fmt.Fprintf(&buf, "  %s %s\n", f.scheme.Label.Sprint("Request ID:"), res.RequestID)
	}

	for _, key := range sortedKeys(res.Extracted) {
		fmt.Fprintf(&buf, "  %s %s\n", f.scheme.Label.Sprint(key+":"), res.Extracted[key])
	}

	if !res.OK() {
		fmt.Fprintf(&buf, "  %s %s\n", f.scheme.Error.Sprint("Error:"), res.Error)
	}

	if f.Verbose && res.Body != "" {
		buf.WriteString("  Body:\n")
		buf.WriteString(indentJSON(res.Body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatSummary renders batch totals, timing percentiles and gate state.
func (f *Formatter) FormatSummary(snap metrics.Snapshot, stats gate.Stats, breaker string) string {
	var buf strings.Builder

	buf.WriteString(f.scheme.Highlight.Sprint("Summary") + "\n")
	fmt.Fprintf(&buf, "  Documents:  %d total, %s, %s, %s\n",
		snap.Total(),
		f.scheme.Success.Sprintf("%d accepted", snap.Succeeded),
		f.scheme.Error.Sprintf("%d failed", snap.Failed),
		f.scheme.StatusWarn.Sprintf("%d not sent", snap.Rejected))

	fmt.Fprintf(&buf, "  Limit:      %d per %s\n", stats.Capacity, stats.Window)
	fmt.Fprintf(&buf, "  Gate wait:  %s\n", formatDistribution(snap.GateWait))
	fmt.Fprintf(&buf, "  Latency:    %s\n", formatDistribution(snap.Latency))

	if f.Verbose {
		fmt.Fprintf(&buf, "  Gate:       %d admitted, %d canceled, %d in window, %d waiting\n",
			stats.Admitted, stats.Canceled, stats.InWindow, stats.Waiting)
		fmt.Fprintf(&buf, "  Breaker:    %s\n", breaker)
	}

	return buf.String()
}

// FormatValidation renders the schema check of one document.
func (f *Formatter) FormatValidation(name string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s %s\n", SuccessIcon(f.NoColor), name)
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s\n", ErrorIcon(f.NoColor), name)
	for _, line := range strings.Split(err.Error(), "\n") {
		for _, part := range strings.Split(line, "; ") {
			if part = strings.TrimSpace(part); part != "" {
				fmt.Fprintf(&buf, "  %s %s\n", f.scheme.Error.Sprint("-"), part)
			}
		}
	}
	return buf.String()
}

// Admission is one caller's outcome in a gate simulation.
type Admission struct {
	Caller int           `json:"caller" yaml:"caller"`
	Offset time.Duration `json:"offset" yaml:"offset"`
	Wait   time.Duration `json:"wait" yaml:"wait"`
	Err    error         `json:"-" yaml:"-"`
}

// FormatSimulation renders admissions ordered by offset, then the wait
// distribution.
func (f *Formatter) FormatSimulation(admissions []Admission, snap metrics.Snapshot, stats gate.Stats) string {
	var buf strings.Builder

	ordered := make([]Admission, len(admissions))
	copy(ordered, admissions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset < ordered[j].Offset
	})

	fmt.Fprintf(&buf, "%s %d callers, limit %d per %s\n",
		f.scheme.Highlight.Sprint("Simulation"), len(admissions), stats.Capacity, stats.Window)

	for _, a := range ordered {
		if a.Err != nil {
			fmt.Fprintf(&buf, "  %s caller %-3d %s\n", ErrorIcon(f.NoColor), a.Caller, f.scheme.Error.Sprint(a.Err))
			continue
		}
		fmt.Fprintf(&buf, "  %s caller %-3d admitted at +%-10s waited %s\n",
			SuccessIcon(f.NoColor), a.Caller, formatDuration(a.Offset), formatDuration(a.Wait))
	}

	fmt.Fprintf(&buf, "  Gate wait:  %s\n", formatDistribution(snap.GateWait))
	return buf.String()
}

func formatDistribution(d metrics.Distribution) string {
	if d.Count == 0 {
		return "n/a"
	}
	return fmt.Sprintf("min %s  mean %s  p50 %s  p90 %s  p99 %s  max %s",
		formatDuration(d.Min), formatDuration(d.Mean), formatDuration(d.P50),
		formatDuration(d.P90), formatDuration(d.P99), formatDuration(d.Max))
}

// formatDuration rounds for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func displayName(res submit.Result) string {
	if res.Name != "" {
		return res.Name
	}
	return res.RequestID
}

func maskSecret(v string) string {
	scheme, _, found := strings.Cut(v, " ")
	if found {
		return scheme + " ****"
	}
	return "****"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// indentJSON pretty-prints s when it is JSON and returns it unchanged otherwise.
func indentJSON(s string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(s), "  ", "  "); err != nil {
		return "  " + s
	}
	return "  " + pretty.String()
}
