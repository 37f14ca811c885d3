package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/piazza/internal/engine"
	"github.com/roach88/piazza/internal/ir"
)

// AssertionContext gives assertions access to the engine after the flow.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Controller
	Views  int
}

// AssertionError is a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  expected: %s\n  actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOutputCount:
		n, ok := result.Outputs[a.Output]
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("output %s", a.Output), Actual: "no such output"}
		}
		if n != *a.Count {
			return &AssertionError{Type: a.Type,
				Expected: fmt.Sprintf("%s has %d rows", a.Output, *a.Count),
				Actual:   fmt.Sprintf("%d rows", n)}
		}
	case AssertOutputExists:
		if _, ok := result.Outputs[a.Output]; !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("output %s", a.Output), Actual: "no such output"}
		}
	case AssertInputExists:
		inputs, err := actx.Engine.Inputs(actx.Ctx)
		if err != nil {
			return err
		}
		if _, ok := inputs[a.Input]; !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("input %s", a.Input), Actual: "no such input"}
		}
	case AssertSize:
		if a.Count != nil && result.Size != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("size %d", *a.Count), Actual: fmt.Sprintf("size %d", result.Size)}
		}
		if a.Min != nil && result.Size < *a.Min {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("size >= %d", *a.Min), Actual: fmt.Sprintf("size %d", result.Size)}
		}
	case AssertViews:
		if actx.Views != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d views", *a.Count), Actual: fmt.Sprintf("%d views", actx.Views)}
		}
	case AssertRows:
		return assertRows(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// assertRows compares a relation's rows with the expected rows, ignoring
// order.
func assertRows(a Assertion, actx *AssertionContext) error {
	got, err := actx.Engine.Snapshot(actx.Ctx, a.Relation)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("relation %s", a.Relation), Actual: err.Error()}
	}
	want, err := convertRows(a.Rows)
	if err != nil {
		return err
	}

	gotKeys, wantKeys := rowKeys(got), rowKeys(want)
	if diff := cmp.Diff(wantKeys, gotKeys); diff != "" {
		return &AssertionError{Type: a.Type,
			Expected: fmt.Sprintf("%s rows %v", a.Relation, wantKeys),
			Actual:   fmt.Sprintf("(-want +got)\n%s", diff)}
	}
	return nil
}

// rowKeys renders rows as sorted strings for order-insensitive comparison.
func rowKeys(rows []ir.Row) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = "[" + strings.Join(r.Strings(), ", ") + "]"
	}
	slices.Sort(keys)
	return keys
}
