package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/store"
)

// Mutator writes rows into one input.
type Mutator struct {
	c       *Controller
	node    store.Node
	columns int
	shards  []string // shard tables, nil when unsharded
}

// Mutator returns a writer for an input node.
func (c *Controller) Mutator(ctx context.Context, id NodeID) (*Mutator, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	n, err := c.node(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Kind != store.KindBase && n.Kind != store.KindContext {
		return nil, newError(CodeUnknownNode, n.Name, nil, "node is not an input")
	}

	m := &Mutator{c: c, node: n}
	if n.Kind == store.KindBase && !n.Materialized {
		shards, err := c.shardsOf(ctx, n)
		if err != nil {
			return nil, err
		}
		m.shards = shards
	}

	target := n.Name
	if len(m.shards) > 0 {
		target = m.shards[0]
	}
	cols, err := c.store.Columns(ctx, target)
	if err != nil {
		return nil, err
	}
	m.columns = len(cols)
	return m, nil
}

func (c *Controller) node(ctx context.Context, id NodeID) (store.Node, error) {
	n, err := c.store.NodeByID(ctx, int64(id))
	if errors.Is(err, store.ErrNotFound) {
		return store.Node{}, newError(CodeUnknownNode, fmt.Sprint(id), nil, "no such node")
	}
	return n, err
}

func (c *Controller) shardsOf(ctx context.Context, base store.Node) ([]string, error) {
	shards := make([]string, 0, c.shards)
	for k := 0; ; k++ {
		n, err := c.store.Node(ctx, shardName(base.Name, k))
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		shards = append(shards, n.Name)
	}
	if len(shards) == 0 {
		return nil, newError(CodeUnknownNode, base.Name, nil, "sharded relation has no shards")
	}
	return shards, nil
}

// Name returns the input's name.
func (m *Mutator) Name() string { return m.node.Name }

// Put appends one row. The row must supply a value for every column.
// Dependent materialized views are refreshed asynchronously.
func (m *Mutator) Put(ctx context.Context, row ir.Row) error {
	if m.c.closed.Load() {
		return ErrClosed
	}
	if len(row) != m.columns {
		return newError(CodeWriteRejected, m.node.Name, nil,
			"row has %d values, relation has %d columns", len(row), m.columns)
	}

	target := m.node.Name
	if len(m.shards) > 0 {
		target = m.shards[shardOf(row, len(m.shards))]
	}
	if err := m.c.store.InsertRow(ctx, target, row); err != nil {
		return newError(CodeWriteRejected, m.node.Name, err, "insert")
	}

	if !m.c.partial {
		m.c.refresh.changed(ctx, NodeID(m.node.ID))
	}
	return nil
}

// shardOf routes a row by the hash of its first column.
func shardOf(row ir.Row, n int) int {
	if len(row) == 0 || n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(ir.SQLLiteral(row[0])) % uint64(n))
}

// Getter reads one output.
type Getter struct {
	c    *Controller
	node store.Node
}

// Getter returns a reader for any node.
func (c *Controller) Getter(ctx context.Context, id NodeID) (*Getter, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	n, err := c.node(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Getter{c: c, node: n}, nil
}

// Name returns the name of the node the getter reads.
func (g *Getter) Name() string { return g.node.Name }

// Len returns the number of rows the output currently holds.
func (g *Getter) Len(ctx context.Context) (int, error) {
	if g.c.closed.Load() {
		return 0, ErrClosed
	}
	return g.c.store.CountRows(ctx, g.node.Name)
}

// Lookup returns every row the output currently holds.
func (g *Getter) Lookup(ctx context.Context) ([]ir.Row, error) {
	if g.c.closed.Load() {
		return nil, ErrClosed
	}
	return g.c.store.SelectRows(ctx, g.node.Name)
}

// Snapshot returns the rows behind a named endpoint, input or output.
func (c *Controller) Snapshot(ctx context.Context, name string) ([]ir.Row, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ep, err := c.store.Endpoint(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(CodeUnknownRelation, name, nil, "no such endpoint")
	}
	if err != nil {
		return nil, err
	}
	g, err := c.Getter(ctx, NodeID(ep.NodeID))
	if err != nil {
		return nil, err
	}
	return g.Lookup(ctx)
}
