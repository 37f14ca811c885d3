package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/piazza/internal/backend"
	"github.com/roach88/piazza/internal/compiler"
	"github.com/roach88/piazza/internal/engine"
)

// Error codes for failures that carry no engine code.
const (
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeCompile    = "E_COMPILE"
	ErrCodeGeneric    = "E_GENERIC"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Policies string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool `json:"valid" yaml:"valid"`
	Inputs  int  `json:"inputs" yaml:"inputs"`
	Outputs int  `json:"outputs" yaml:"outputs"`
}

// ValidationFailure describes where validation stopped.
type ValidationFailure struct {
	Step  string `json:"step" yaml:"step"`
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
	Line  int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema> [queries]",
		Short: "Validate a schema, security policies and queries",
		Long: `Install a schema, optional security policies and optional queries into a
scratch in-memory engine, in the order the benchmark does, and report the
first rejection.

Examples:
  piazza validate benchmarks/piazza/schema.sql
  piazza validate benchmarks/piazza/schema.sql benchmarks/piazza/post-queries.sql \
    --policies benchmarks/piazza/ta-policies.json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := ""
			if len(args) == 2 {
				queries = args[1]
			}
			return runValidate(opts, args[0], queries, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Policies, "policies", "", "security policy file")
	return cmd
}

func runValidate(opts *ValidateOptions, schema, queries string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := backend.New(ctx, backend.Config{Reuse: "full", Logger: newLogger(p.logWriter(), true)})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start backend", err)
	}
	defer b.Close()

	steps := []struct {
		name string
		skip bool
		run  func() error
	}{
		{"schema", false, func() error { return b.Migrate(ctx, schema, "") }},
		{"security", opts.Policies == "", func() error { return b.SetSecurityConfig(ctx, opts.Policies) }},
		{"queries", queries == "", func() error { return b.Migrate(ctx, schema, queries) }},
	}
	for _, step := range steps {
		if step.skip {
			continue
		}
		p.Debugf("Installing %s", step.name)
		if err := step.run(); err != nil {
			if outErr := p.Fail(errorCode(err), err.Error(), nil, failureDetails(step.name, err)); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "validation failed", err)
		}
	}

	inputs, err := b.Handle().Inputs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list inputs", err)
	}
	outputs, err := b.Handle().Outputs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list outputs", err)
	}

	result := ValidationResult{Valid: true, Inputs: len(inputs), Outputs: len(outputs)}
	return p.Result(result, fmt.Sprintf("✓ valid: %d relations, %d queries", result.Inputs, result.Outputs))
}

// errorCode maps an install error to the code reported to the user.
func errorCode(err error) string {
	var engErr *engine.Error
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &engErr):
		return string(engErr.Code)
	case errors.As(err, &compileErr):
		return ErrCodeCompile
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound
	default:
		return ErrCodeGeneric
	}
}

func failureDetails(step string, err error) ValidationFailure {
	f := ValidationFailure{Step: step}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		f.Field = compileErr.Field
		f.Line = compileErr.Line
		if compileErr.Pos.IsValid() {
			f.Line = compileErr.Pos.Line()
		}
	}
	return f
}
