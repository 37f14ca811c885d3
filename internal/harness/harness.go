package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/piazza/internal/backend"
	"github.com/roach88/piazza/internal/engine"
	"github.com/roach88/piazza/internal/ir"
)

// DefaultReuse is the reuse strategy scenarios run with unless they name one.
const DefaultReuse = "full"

// Harness runs one scenario against its own engine.
type Harness struct {
	ctrl    *engine.Controller
	backend *backend.Backend
	logger  *slog.Logger
}

// Run executes a scenario in a fresh in-memory engine and returns the
// result. An error means the scenario could not be set up (bad files, a
// rejected recipe or security config); step and assertion failures are
// reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithLogger(ctx, scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine and backend logs sent to logger.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	reuseName := scenario.Engine.Reuse
	if reuseName == "" {
		reuseName = DefaultReuse
	}
	reuse, err := engine.ParseReuse(reuseName)
	if err != nil {
		return nil, err
	}

	c, err := engine.New(ctx,
		engine.WithWorkers(backend.Workers),
		engine.WithPartial(scenario.Engine.Partial),
		engine.WithSharding(scenario.Engine.Shards),
		engine.WithReuse(reuse),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	defer c.Close()

	h := &Harness{
		ctrl:    c,
		backend: backend.FromHandle(backend.NewHandle(c), logger, nil),
		logger:  logger,
	}

	if err := h.install(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	m, err := h.backend.Materialization(ctx)
	if err != nil {
		return nil, err
	}
	result.Size = m.Rows
	outputs, err := c.Outputs(ctx)
	if err != nil {
		return nil, err
	}
	for name, id := range outputs {
		g, err := c.Getter(ctx, id)
		if err != nil {
			return nil, err
		}
		n, err := g.Len(ctx)
		if err != nil {
			return nil, err
		}
		result.Outputs[name] = n
	}
	if result.Graph, err = c.Graphviz(ctx); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Engine: c, Views: m.Views}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// install runs the driver's install order.
func (h *Harness) install(ctx context.Context, s *Scenario) error {
	if err := h.backend.Migrate(ctx, s.Schema, ""); err != nil {
		return fmt.Errorf("failed to install schema: %w", err)
	}
	if s.Policy != "" {
		if err := h.backend.SetSecurityConfig(ctx, s.Policy); err != nil {
			return fmt.Errorf("failed to install security config: %w", err)
		}
	}
	if s.Queries != "" {
		if err := h.backend.Migrate(ctx, s.Schema, s.Queries); err != nil {
			return fmt.Errorf("failed to install queries: %w", err)
		}
	}
	return nil
}

// executeFlow runs every step, recording its outcome and checking its
// expect clause. A step that fails as expected does not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		ev := TraceEvent{Step: i}
		var stepErr error

		if step.Login != nil {
			uctx, err := ir.ContextFromMap(step.Login)
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			ev.Kind = "login"
			if id, err := uctx.ID(); err == nil {
				ev.Target = id.String()
			}
			stepErr = h.backend.Login(ctx, uctx)
		} else {
			rows, err := convertRows(step.Rows)
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			ev.Kind, ev.Target, ev.Rows = "write", step.Write, len(rows)
			stepErr = h.backend.Write(ctx, step.Write, rows...)
		}

		ev.Outcome = outcome(stepErr)
		result.Trace = append(result.Trace, ev)

		want := ""
		if step.Expect != nil {
			want = step.Expect.Error
		}
		switch {
		case want == "" && stepErr != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s %s: unexpected error: %v", i, ev.Kind, ev.Target, stepErr))
		case want != "" && ev.Outcome != want:
			result.AddError(fmt.Sprintf("flow[%d] %s %s: expected %s, got %s", i, ev.Kind, ev.Target, want, ev.Outcome))
		}

		h.logger.Debug("flow step completed", "step", i, "kind", ev.Kind, "target", ev.Target, "outcome", ev.Outcome)
	}
	return nil
}

// outcome maps a step error to its engine error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	if errors.Is(err, backend.ErrUnknownInput) {
		return "UNKNOWN_INPUT"
	}
	return "ERROR"
}

func convertRows(raw [][]any) ([]ir.Row, error) {
	rows := make([]ir.Row, len(raw))
	for i, r := range raw {
		row := make(ir.Row, len(r))
		for j, cell := range r {
			v, err := ir.FromAny(cell)
			if err != nil {
				return nil, fmt.Errorf("rows[%d][%d]: %w", i, j, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}
