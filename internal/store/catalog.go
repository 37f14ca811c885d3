package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Runner is satisfied by *sql.DB and *sql.Tx.
type Runner interface {
	sq.BaseRunner
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Catalog reads and writes the engine catalog through a Runner. The Store
// embeds one over its database; WithTx hands out one bound to a transaction.
type Catalog struct {
	run  Runner
	stbl sq.StatementBuilderType
}

func newCatalog(run Runner) *Catalog {
	return &Catalog{run: run, stbl: statementBuilder(run)}
}

// NodeKind classifies dataflow nodes.
type NodeKind string

const (
	// KindBase is a recipe base relation.
	KindBase NodeKind = "base"
	// KindShard is one hash partition of a sharded base relation.
	KindShard NodeKind = "shard"
	// KindContext is a tenant's context relation.
	KindContext NodeKind = "context"
	// KindFilter is a policy-filtered (or private) copy of a base relation.
	KindFilter NodeKind = "filter"
	// KindQuery is a recipe query, shared or per universe.
	KindQuery NodeKind = "query"
)

// Node is one relation in the dataflow graph. Name is also the SQLite
// object holding its rows.
type Node struct {
	ID           int64
	Name         string
	Kind         NodeKind
	Universe     string // universe key, "" for the shared graph
	Fingerprint  string
	Definition   string // SELECT for derived nodes, column list for base nodes
	Materialized bool
	Filtered     bool // reads, directly or not, a policy-filtered relation
	Seq          int64
}

// Edge is a parent -> child dataflow dependency.
type Edge struct {
	Parent int64
	Child  int64
}

// Direction distinguishes write endpoints from read endpoints.
type Direction string

const (
	// Input endpoints accept rows.
	Input Direction = "input"
	// Output endpoints expose a row count and a snapshot.
	Output Direction = "output"
)

// Endpoint names a node for writers or readers. Several outputs may share
// one node when definitions are folded.
type Endpoint struct {
	Name      string
	NodeID    int64
	Direction Direction
	Universe  string
}

// ErrNotFound is returned when a catalog lookup matches nothing.
var ErrNotFound = errors.New("not found")

var nodeColumns = []string{
	"id", "name", "kind", "universe", "fingerprint", "definition", "materialized", "filtered", "seq",
}

// InsertNode records a node and returns its ID.
func (c *Catalog) InsertNode(ctx context.Context, n Node) (int64, error) {
	res, err := c.stbl.
		Insert("catalog_nodes").
		Columns("name", "kind", "universe", "fingerprint", "definition", "materialized", "filtered", "seq").
		Values(n.Name, string(n.Kind), n.Universe, n.Fingerprint, n.Definition, n.Materialized, n.Filtered, n.Seq).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert node %s: %w", n.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert node %s: %w", n.Name, err)
	}
	return id, nil
}

// InsertEdge records a dependency. Duplicate edges are ignored.
func (c *Catalog) InsertEdge(ctx context.Context, parent, child int64) error {
	_, err := c.stbl.
		Insert("catalog_edges").
		Options("OR IGNORE").
		Columns("parent", "child").
		Values(parent, child).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert edge %d->%d: %w", parent, child, err)
	}
	return nil
}

// PutEndpoint records an endpoint. Endpoint names are unique.
func (c *Catalog) PutEndpoint(ctx context.Context, e Endpoint) error {
	_, err := c.stbl.
		Insert("catalog_endpoints").
		Columns("name", "node_id", "direction", "universe").
		Values(e.Name, e.NodeID, string(e.Direction), e.Universe).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert endpoint %s: %w", e.Name, err)
	}
	return nil
}

// Node looks a node up by name (case-insensitive).
func (c *Catalog) Node(ctx context.Context, name string) (Node, error) {
	return c.queryNode(ctx, sq.Eq{"name": name})
}

// NodeByID looks a node up by ID.
func (c *Catalog) NodeByID(ctx context.Context, id int64) (Node, error) {
	return c.queryNode(ctx, sq.Eq{"id": id})
}

// NodeByFingerprint returns the earliest derived node with the given
// definition fingerprint.
func (c *Catalog) NodeByFingerprint(ctx context.Context, fp string) (Node, error) {
	return c.queryNode(ctx, sq.And{
		sq.Eq{"fingerprint": fp},
		sq.Eq{"kind": []string{string(KindQuery), string(KindFilter)}},
	})
}

func (c *Catalog) queryNode(ctx context.Context, where sq.Sqlizer) (Node, error) {
	nodes, err := c.selectNodes(ctx, where)
	if err != nil {
		return Node{}, err
	}
	if len(nodes) == 0 {
		return Node{}, ErrNotFound
	}
	return nodes[0], nil
}

// Nodes returns every node in creation order.
func (c *Catalog) Nodes(ctx context.Context) ([]Node, error) {
	return c.selectNodes(ctx, nil)
}

// Children returns the direct dependents of a node in creation order.
func (c *Catalog) Children(ctx context.Context, id int64) ([]Node, error) {
	return c.selectNodes(ctx, sq.Expr("id IN (SELECT child FROM catalog_edges WHERE parent = ?)", id))
}

func (c *Catalog) selectNodes(ctx context.Context, where sq.Sqlizer) ([]Node, error) {
	sb := c.stbl.Select(nodeColumns...).From("catalog_nodes").OrderBy("seq ASC", "id ASC")
	if where != nil {
		sb = sb.Where(where)
	}
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var (
			n    Node
			kind string
		)
		if err := rows.Scan(&n.ID, &n.Name, &kind, &n.Universe, &n.Fingerprint,
			&n.Definition, &n.Materialized, &n.Filtered, &n.Seq); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Kind = NodeKind(kind)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// Edges returns every edge ordered by parent then child.
func (c *Catalog) Edges(ctx context.Context) ([]Edge, error) {
	rows, err := c.stbl.
		Select("parent", "child").
		From("catalog_edges").
		OrderBy("parent ASC", "child ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Parent, &e.Child); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// Endpoint looks an endpoint up by name (case-insensitive).
func (c *Catalog) Endpoint(ctx context.Context, name string) (Endpoint, error) {
	eps, err := c.selectEndpoints(ctx, sq.Eq{"name": name})
	if err != nil {
		return Endpoint{}, err
	}
	if len(eps) == 0 {
		return Endpoint{}, ErrNotFound
	}
	return eps[0], nil
}

// Endpoints returns the endpoints in one direction ordered by name.
func (c *Catalog) Endpoints(ctx context.Context, dir Direction) ([]Endpoint, error) {
	return c.selectEndpoints(ctx, sq.Eq{"direction": string(dir)})
}

func (c *Catalog) selectEndpoints(ctx context.Context, where sq.Sqlizer) ([]Endpoint, error) {
	rows, err := c.stbl.
		Select("name", "node_id", "direction", "universe").
		From("catalog_endpoints").
		Where(where).
		OrderBy("name ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var eps []Endpoint
	for rows.Next() {
		var (
			e   Endpoint
			dir string
		)
		if err := rows.Scan(&e.Name, &e.NodeID, &dir, &e.Universe); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		e.Direction = Direction(dir)
		eps = append(eps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return eps, nil
}

// PutSetting stores a named value, replacing any previous one.
func (c *Catalog) PutSetting(ctx context.Context, name, value string) error {
	_, err := c.stbl.
		Insert("catalog_settings").
		Options("OR REPLACE").
		Columns("name", "value").
		Values(name, value).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", name, err)
	}
	return nil
}

// Setting returns a named value or ErrNotFound.
func (c *Catalog) Setting(ctx context.Context, name string) (string, error) {
	var value string
	err := c.stbl.
		Select("value").
		From("catalog_settings").
		Where(sq.Eq{"name": name}).
		QueryRowContext(ctx).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, nil
}
