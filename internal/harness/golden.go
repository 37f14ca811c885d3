package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/piazza/internal/ir"
)

// Snapshot captures the observable outcome of a scenario run.
type Snapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEvent   `json:"trace"`
	Outputs      map[string]int `json:"outputs"`
	Size         int            `json:"size"`
}

// toCanonicalMap converts a Snapshot for ir.MarshalCanonical, which only
// handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":    ev.Step,
			"kind":    ev.Kind,
			"target":  ev.Target,
			"outcome": ev.Outcome,
		}
		if ev.Rows != 0 {
			m["rows"] = ev.Rows
		}
		trace[i] = m
	}
	outputs := make(map[string]any, len(s.Outputs))
	for name, n := range s.Outputs {
		outputs[name] = n
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"outputs":       outputs,
		"size":          s.Size,
	}
}

// RunWithGolden executes a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden and its dataflow graph with
// testdata/golden/{scenario.Name}_graph.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with the golden files for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	g.Assert(t, name+"_graph", []byte(result.Graph))
	return nil
}

// SnapshotJSON renders the canonical JSON snapshot of a result.
func SnapshotJSON(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Outputs:      result.Outputs,
		Size:         result.Size,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
