package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one benchmark scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the schema recipe. Relative paths resolve
	// against the scenario file.
	Schema string `yaml:"schema"`

	// Queries is the optional path to the query recipe.
	Queries string `yaml:"queries,omitempty"`

	// Policy is the optional path to the security config.
	Policy string `yaml:"policy,omitempty"`

	// Engine configures the engine. Defaults: full reuse, materialized,
	// unsharded.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Flow contains the writes and logins, run in order after installation.
	Flow []Step `yaml:"flow"`

	// Assertions check the state after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// EngineConfig selects the engine configuration for a scenario.
type EngineConfig struct {
	Reuse   string `yaml:"reuse,omitempty"`
	Partial bool   `yaml:"partial,omitempty"`
	Shards  int    `yaml:"shards,omitempty"`
}

// Step is one flow step: exactly one of Login or Write.
type Step struct {
	// Login is a tenant context. It must carry an id.
	Login map[string]any `yaml:"login,omitempty"`

	// Write names the input Rows are written to.
	Write string  `yaml:"write,omitempty"`
	Rows  [][]any `yaml:"rows,omitempty"`

	// Expect checks the step's outcome. Nil expects success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected engine error code (e.g. UNIVERSE_CONFLICT).
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	// Type is one of output_count, rows, size, input_exists, output_exists,
	// views.
	Type string `yaml:"type"`

	// Output is the output name (output_count, output_exists).
	Output string `yaml:"output,omitempty"`

	// Input is the input name (input_exists).
	Input string `yaml:"input,omitempty"`

	// Relation is an input or output name (rows).
	Relation string `yaml:"relation,omitempty"`

	// Count is the expected row count (output_count, size, views).
	Count *int `yaml:"count,omitempty"`

	// Min is a lower bound on the total row count (size).
	Min *int `yaml:"min,omitempty"`

	// Rows are the expected rows in any order (rows).
	Rows [][]any `yaml:"rows,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputCount  = "output_count"
	AssertRows         = "rows"
	AssertSize         = "size"
	AssertInputExists  = "input_exists"
	AssertOutputExists = "output_exists"
	AssertViews        = "views"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and file paths are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&scenario.Schema, &scenario.Queries, &scenario.Policy} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	for _, p := range []string{s.Schema, s.Queries, s.Policy} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}
	if s.Engine.Shards < 0 {
		return fmt.Errorf("engine.shards must not be negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch {
		case step.Login != nil && step.Write != "":
			return fmt.Errorf("flow[%d]: login and write are mutually exclusive", i)
		case step.Login != nil:
			if _, ok := step.Login["id"]; !ok {
				return fmt.Errorf("flow[%d]: login context requires an id", i)
			}
		case step.Write != "":
			if len(step.Rows) == 0 {
				return fmt.Errorf("flow[%d]: write requires rows", i)
			}
		default:
			return fmt.Errorf("flow[%d]: one of login or write is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutputCount:
		if a.Output == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: output_count requires output and count", index)
		}
	case AssertRows:
		if a.Relation == "" {
			return fmt.Errorf("assertions[%d]: rows requires relation", index)
		}
	case AssertSize:
		if a.Count == nil && a.Min == nil {
			return fmt.Errorf("assertions[%d]: size requires count or min", index)
		}
	case AssertInputExists:
		if a.Input == "" {
			return fmt.Errorf("assertions[%d]: input_exists requires input", index)
		}
	case AssertOutputExists:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output_exists requires output", index)
		}
	case AssertViews:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: views requires count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
