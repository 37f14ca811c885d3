//go:generate mockgen -source handle.go -destination ../mocks/mock_handle.go -package mocks

package backend

import (
	"context"

	"github.com/roach88/piazza/internal/engine"
	"github.com/roach88/piazza/internal/ir"
)

// Handle is the engine surface the orchestrator drives.
type Handle interface {
	InstallRecipe(ctx context.Context, text string) error
	SetSecurityConfig(ctx context.Context, doc string) error
	CreateUniverse(ctx context.Context, uctx ir.Context) error
	Inputs(ctx context.Context) (map[string]engine.NodeID, error)
	Outputs(ctx context.Context) (map[string]engine.NodeID, error)
	Mutator(ctx context.Context, id engine.NodeID) (Writer, error)
	Getter(ctx context.Context, id engine.NodeID) (Reader, error)
	Graphviz(ctx context.Context) (string, error)
	Quiesce(ctx context.Context) error
	Close() error
}

// Writer appends rows to one input.
type Writer interface {
	Put(ctx context.Context, row ir.Row) error
}

// Reader reports the current size of one output.
type Reader interface {
	Len(ctx context.Context) (int, error)
}

// controllerHandle adapts *engine.Controller to Handle.
type controllerHandle struct {
	*engine.Controller
}

var _ Handle = controllerHandle{}

// NewHandle wraps a controller as a Handle.
func NewHandle(c *engine.Controller) Handle {
	return controllerHandle{c}
}

func (h controllerHandle) Mutator(ctx context.Context, id engine.NodeID) (Writer, error) {
	m, err := h.Controller.Mutator(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (h controllerHandle) Getter(ctx context.Context, id engine.NodeID) (Reader, error) {
	g, err := h.Controller.Getter(ctx, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}
