// Package report collects benchmark timings and renders the run summary as
// text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "yaml"}

// Params echoes the run configuration.
type Params struct {
	Reuse    string  `json:"reuse" yaml:"reuse"`
	Partial  bool    `json:"partial" yaml:"partial"`
	Shards   int     `json:"shards" yaml:"shards"`
	Populate bool    `json:"populate" yaml:"populate"`
	Users    int     `json:"users" yaml:"users"`
	Logged   int     `json:"logged" yaml:"logged"`
	Classes  int     `json:"classes" yaml:"classes"`
	Posts    int     `json:"posts" yaml:"posts"`
	Private  float64 `json:"private" yaml:"private"`
}

// Phase is one timed setup step.
type Phase struct {
	Name    string  `json:"name" yaml:"name"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
}

// LoginStats summarizes login latencies in seconds.
type LoginStats struct {
	Count  int     `json:"count" yaml:"count"`
	Failed int     `json:"failed" yaml:"failed"`
	Total  float64 `json:"total" yaml:"total"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	P50    float64 `json:"p50" yaml:"p50"`
	P95    float64 `json:"p95" yaml:"p95"`
	P99    float64 `json:"p99" yaml:"p99"`
	Max    float64 `json:"max" yaml:"max"`
}

// Report is the summary of one benchmark run.
type Report struct {
	RunID   string     `json:"run_id" yaml:"run_id"`
	Params  Params     `json:"params" yaml:"params"`
	Phases  []Phase    `json:"phases" yaml:"phases"`
	Logins  LoginStats `json:"logins" yaml:"logins"`
	Rows    int        `json:"rows" yaml:"rows"`
	Views   int        `json:"views" yaml:"views"`
	Average float64    `json:"average" yaml:"average"`
}

// Recorder accumulates measurements during a run. It is not safe for
// concurrent use.
type Recorder struct {
	report Report
	logins []float64
	failed int
}

// NewRecorder starts a report with a fresh run ID.
func NewRecorder(gen IDGenerator, params Params) *Recorder {
	return &Recorder{report: Report{RunID: gen.Generate(), Params: params}}
}

// RunID returns the report's run ID.
func (r *Recorder) RunID() string { return r.report.RunID }

// Phase records a setup step.
func (r *Recorder) Phase(name string, d time.Duration) {
	r.report.Phases = append(r.report.Phases, Phase{Name: name, Seconds: d.Seconds()})
}

// Login records one login. Failed logins count but add no latency sample.
func (r *Recorder) Login(d time.Duration, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.logins = append(r.logins, d.Seconds())
}

// Finish computes login statistics and attaches the final size.
func (r *Recorder) Finish(rows, views int) Report {
	rep := r.report
	rep.Phases = slices.Clone(r.report.Phases)
	rep.Logins = Summarize(r.logins)
	rep.Logins.Count += r.failed
	rep.Logins.Failed = r.failed
	rep.Rows = rows
	rep.Views = views
	if views > 0 {
		rep.Average = float64(rows) / float64(views)
	}
	return rep
}

// Summarize computes latency statistics over samples in seconds.
func Summarize(samples []float64) LoginStats {
	s := LoginStats{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	s.Total = floats.Sum(sorted)
	s.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	s.Max = sorted[len(sorted)-1]
	return s
}

// Write renders the report in format: text, json or yaml.
func (rep Report) Write(w io.Writer, format string) error {
	if format == "text" {
		_, err := io.WriteString(w, rep.text())
		return err
	}
	return Encode(w, format, rep)
}

// Encode writes v as indented json or yaml. Text has no generic encoding
// and is rejected along with unknown formats.
func Encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be one of %s", format, strings.Join(Formats, ", "))
	}
}

func (rep Report) text() string {
	var b strings.Builder
	p := rep.Params
	fmt.Fprintf(&b, "run %s\n", rep.RunID)
	fmt.Fprintf(&b, "  reuse=%s partial=%t shards=%d populate=%t\n", p.Reuse, p.Partial, p.Shards, p.Populate)
	fmt.Fprintf(&b, "  users=%d logged=%d classes=%d posts=%d private=%.2f\n", p.Users, p.Logged, p.Classes, p.Posts, p.Private)
	for _, ph := range rep.Phases {
		fmt.Fprintf(&b, "%s took %.2fs\n", ph.Name, ph.Seconds)
	}
	l := rep.Logins
	fmt.Fprintf(&b, "%d logins (%d failed) in %.2fs: mean %.3fs stddev %.3fs p50 %.3fs p95 %.3fs p99 %.3fs max %.3fs\n",
		l.Count, l.Failed, l.Total, l.Mean, l.StdDev, l.P50, l.P95, l.P99, l.Max)
	fmt.Fprintf(&b, "%d rows in %d leaf views (avg: %.2f)\n", rep.Rows, rep.Views, rep.Average)
	return b.String()
}
