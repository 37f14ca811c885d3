package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/piazza/internal/compiler"
	"github.com/roach88/piazza/internal/querysql"
	"github.com/roach88/piazza/internal/store"
)

// DefaultWorkers is the size of the materialization worker pool.
const DefaultWorkers = 2

// settingSecurityConfig is the catalog setting holding the installed policy.
const settingSecurityConfig = "security_config"

// NodeID identifies a dataflow node.
type NodeID int64

// Controller owns the dataflow graph: base relations, recipe queries,
// per-tenant universes and the workers that keep materialized views fresh.
//
// Thread-safety model:
//   - Graph mutations (InstallRecipe, SetSecurityConfig, CreateUniverse) are
//     serialized by an internal mutex and each runs in one transaction
//   - Mutator.Put and Getter.Len may be called from any goroutine
//   - Materialized views are refreshed asynchronously; Quiesce waits for them
type Controller struct {
	store   *store.Store
	clock   *Clock
	logger  *slog.Logger
	reuse   Reuse
	partial bool
	shards  int
	workers int
	path    string

	mu      sync.Mutex
	tables  []compiler.Table
	queries []compiler.Query
	policy  *compiler.SecurityConfig

	refresh *refresher
	closed  atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithWorkers sets the materialization worker pool size.
//
// Default: 2 workers (DefaultWorkers).
func WithWorkers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPartial selects lazily computed views (true) or fully materialized
// views refreshed by the worker pool (false).
//
// Default: false.
func WithPartial(partial bool) Option {
	return func(c *Controller) {
		c.partial = partial
	}
}

// WithSharding hash-partitions every base relation over n shards.
// n <= 1 disables sharding.
func WithSharding(n int) Option {
	return func(c *Controller) {
		if n > 1 {
			c.shards = n
		} else {
			c.shards = 0
		}
	}
}

// WithReuse sets the reuse strategy for universes.
//
// Default: Full.
func WithReuse(r Reuse) Option {
	return func(c *Controller) {
		c.reuse = r
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPath stores the graph in a SQLite file instead of memory.
func WithPath(path string) Option {
	return func(c *Controller) {
		c.path = path
	}
}

// New opens a Controller and starts its worker pool.
// Close must be called to stop the workers.
func New(ctx context.Context, opts ...Option) (*Controller, error) {
	c := &Controller{
		clock:   NewClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		reuse:   Full,
		workers: DefaultWorkers,
		path:    store.MemoryPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	s, err := store.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open engine store: %w", err)
	}
	c.store = s
	c.refresh = startRefresher(ctx, s, c.workers, c.logger)

	c.logger.Info("engine started",
		"reuse", c.reuse.String(),
		"partial", c.partial,
		"shards", c.shards,
		"workers", c.workers)
	return c, nil
}

// Close stops the worker pool and releases the store.
// Safe to call more than once.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.refresh.stop()
	return c.store.Close()
}

// Quiesce blocks until every scheduled view refresh has completed.
func (c *Controller) Quiesce(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.refresh.queue.WaitIdle(ctx)
}

// InstallRecipe compiles recipe text and adds its tables and queries to the
// graph, extending every existing universe with the new queries.
//
// Installation is transactional: a table or query redeclared identically is
// skipped, and any rejected statement leaves the graph unchanged.
func (c *Controller) InstallRecipe(ctx context.Context, text string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	r, err := compiler.CompileRecipe(text)
	if err != nil {
		return newError(CodeRecipeRejected, "", err, "compile recipe")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	newTables, newQueries, err := c.diffRecipe(r)
	if err != nil {
		return err
	}
	if len(newTables) == 0 && len(newQueries) == 0 {
		c.logger.Debug("recipe already installed", "hash", r.Hash)
		return nil
	}

	err = c.store.WithTx(ctx, func(cat *store.Catalog) error {
		for _, t := range newTables {
			if err := c.installTable(ctx, cat, t); err != nil {
				return err
			}
		}
		for _, q := range newQueries {
			if err := c.installQuery(ctx, cat, q); err != nil {
				return err
			}
		}

		universes, err := cat.Universes(ctx)
		if err != nil {
			return err
		}
		for _, u := range universes {
			if err := c.instantiate(ctx, cat, u, newTables, newQueries); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return newError(CodeRecipeRejected, "", err, "install recipe")
	}

	c.tables = append(c.tables, newTables...)
	c.queries = append(c.queries, newQueries...)
	c.logger.Info("recipe installed",
		"hash", r.Hash[:12],
		"tables", len(newTables),
		"queries", len(newQueries))
	return nil
}

// diffRecipe returns the tables and queries of r not yet installed.
// Caller holds c.mu.
func (c *Controller) diffRecipe(r *compiler.Recipe) ([]compiler.Table, []compiler.Query, error) {
	var tables []compiler.Table
	for _, t := range r.Tables {
		if strings.HasPrefix(strings.ToLower(t.Name), store.ReservedPrefix) {
			return nil, nil, newError(CodeRecipeRejected, t.Name, nil, "name uses the reserved prefix %s", store.ReservedPrefix)
		}
		if prev, ok := c.table(t.Name); ok {
			if prev.Definition() != t.Definition() {
				return nil, nil, newError(CodeRecipeRejected, t.Name, nil, "table redeclared with a different definition")
			}
			continue
		}
		if _, ok := c.query(t.Name); ok {
			return nil, nil, newError(CodeRecipeRejected, t.Name, nil, "table name is already a query")
		}
		tables = append(tables, t)
	}

	var queries []compiler.Query
	known := func(name string) bool {
		if _, ok := c.table(name); ok {
			return true
		}
		if _, ok := c.query(name); ok {
			return true
		}
		for _, t := range tables {
			if strings.EqualFold(t.Name, name) {
				return true
			}
		}
		for _, q := range queries {
			if strings.EqualFold(q.Name, name) {
				return true
			}
		}
		return false
	}
	for _, q := range r.Queries {
		if strings.HasPrefix(strings.ToLower(q.Name), store.ReservedPrefix) {
			return nil, nil, newError(CodeRecipeRejected, q.Name, nil, "name uses the reserved prefix %s", store.ReservedPrefix)
		}
		if prev, ok := c.query(q.Name); ok {
			if prev.Definition() != q.Definition() {
				return nil, nil, newError(CodeRecipeRejected, q.Name, nil, "query redeclared with a different definition")
			}
			continue
		}
		if _, ok := c.table(q.Name); ok {
			return nil, nil, newError(CodeRecipeRejected, q.Name, nil, "query name is already a table")
		}
		for _, rel := range q.Relations {
			if !known(rel) {
				return nil, nil, newError(CodeUnknownRelation, rel, nil, "query %s reads an undeclared relation", q.Name)
			}
		}
		queries = append(queries, q)
	}
	return tables, queries, nil
}

func (c *Controller) table(name string) (compiler.Table, bool) {
	for _, t := range c.tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return compiler.Table{}, false
}

func (c *Controller) query(name string) (compiler.Query, bool) {
	for _, q := range c.queries {
		if strings.EqualFold(q.Name, name) {
			return q, true
		}
	}
	return compiler.Query{}, false
}

// installTable creates a base relation, sharded or not, and its input.
func (c *Controller) installTable(ctx context.Context, cat *store.Catalog, t compiler.Table) error {
	base := store.Node{
		Name:       t.Name,
		Kind:       store.KindBase,
		Definition: t.Body,
		Seq:        c.clock.Next(),
	}

	if c.shards == 0 {
		if err := cat.Exec(ctx, fmt.Sprintf("CREATE TABLE %s %s", querysql.QuoteIdent(t.Name), t.Body)); err != nil {
			return newError(CodeRecipeRejected, t.Name, err, "create table")
		}
		base.Materialized = true
		id, err := cat.InsertNode(ctx, base)
		if err != nil {
			return err
		}
		return cat.PutEndpoint(ctx, store.Endpoint{Name: t.Name, NodeID: id, Direction: store.Input})
	}

	shardIDs := make([]int64, c.shards)
	selects := make([]string, c.shards)
	for k := 0; k < c.shards; k++ {
		name := shardName(t.Name, k)
		if err := cat.Exec(ctx, fmt.Sprintf("CREATE TABLE %s %s", querysql.QuoteIdent(name), t.Body)); err != nil {
			return newError(CodeRecipeRejected, t.Name, err, "create shard %d", k)
		}
		id, err := cat.InsertNode(ctx, store.Node{
			Name:         name,
			Kind:         store.KindShard,
			Definition:   t.Body,
			Materialized: true,
			Seq:          c.clock.Next(),
		})
		if err != nil {
			return err
		}
		shardIDs[k] = id
		selects[k] = "SELECT * FROM " + querysql.QuoteIdent(name)
	}

	// The base relation is the union of its shards.
	base.Seq = c.clock.Next()
	if err := cat.Exec(ctx, fmt.Sprintf("CREATE VIEW %s AS %s",
		querysql.QuoteIdent(t.Name), strings.Join(selects, " UNION ALL "))); err != nil {
		return newError(CodeRecipeRejected, t.Name, err, "create shard union")
	}
	id, err := cat.InsertNode(ctx, base)
	if err != nil {
		return err
	}
	for _, sid := range shardIDs {
		if err := cat.InsertEdge(ctx, sid, id); err != nil {
			return err
		}
	}
	return cat.PutEndpoint(ctx, store.Endpoint{Name: t.Name, NodeID: id, Direction: store.Input})
}

func shardName(table string, k int) string {
	return fmt.Sprintf("%s__s%d", table, k)
}

// installQuery adds a recipe query to the shared graph.
func (c *Controller) installQuery(ctx context.Context, cat *store.Catalog, q compiler.Query) error {
	sql, parents, _, err := c.bindRelations(ctx, cat, q, sharedScope)
	if err != nil {
		return err
	}

	if c.reuse.foldsDefinitions() {
		folded, err := c.fold(ctx, cat, q.Name, "", sql)
		if err != nil || folded {
			return err
		}
	}

	id, err := c.createDerived(ctx, cat, store.Node{
		Name: q.Name,
		Kind: store.KindQuery,
	}, sql, parents)
	if err != nil {
		return err
	}
	return cat.PutEndpoint(ctx, store.Endpoint{Name: q.Name, NodeID: id, Direction: store.Output})
}

// fold points a new output at an existing node with the same definition.
func (c *Controller) fold(ctx context.Context, cat *store.Catalog, endpoint, universe, sql string) (bool, error) {
	n, err := cat.NodeByFingerprint(ctx, fingerprint(sql))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.logger.Debug("folded query onto existing node", "endpoint", endpoint, "node", n.Name)
	return true, cat.PutEndpoint(ctx, store.Endpoint{
		Name:      endpoint,
		NodeID:    n.ID,
		Direction: store.Output,
		Universe:  universe,
	})
}

func fingerprint(sql string) string {
	return fmt.Sprintf("%016x", querysql.Fingerprint(sql))
}

// createDerived creates the SQLite object for a derived node: a view when
// partial, otherwise a table filled now and refreshed by the worker pool.
func (c *Controller) createDerived(ctx context.Context, cat *store.Catalog, n store.Node, sql string, parents []store.Node) (int64, error) {
	n.Definition = sql
	n.Fingerprint = fingerprint(sql)
	n.Materialized = !c.partial
	n.Seq = c.clock.Next()

	for _, p := range parents {
		n.Filtered = n.Filtered || p.Filtered
	}

	obj := "VIEW"
	if n.Materialized {
		obj = "TABLE"
	}
	stmt := fmt.Sprintf("CREATE %s %s AS %s", obj, querysql.QuoteIdent(n.Name), sql)
	if err := cat.Exec(ctx, stmt); err != nil {
		return 0, newError(CodeRecipeRejected, n.Name, err, "create %s", strings.ToLower(obj))
	}
	// Views are checked lazily by SQLite; resolve columns now.
	if _, err := cat.Columns(ctx, n.Name); err != nil {
		return 0, newError(CodeRecipeRejected, n.Name, err, "invalid definition")
	}

	id, err := cat.InsertNode(ctx, n)
	if err != nil {
		return 0, err
	}
	for _, p := range parents {
		if err := cat.InsertEdge(ctx, p.ID, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// scope resolves relation names for one universe (or the shared graph).
type scope struct {
	suffix string
}

var sharedScope = scope{}

// resolve finds the node a relation name reads in a scope: the universe's
// private node, then the universe's output endpoint, then the shared graph.
func (c *Controller) resolve(ctx context.Context, cat *store.Catalog, s scope, name string) (store.Node, error) {
	if s.suffix != "" {
		n, err := cat.Node(ctx, name+s.suffix)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.Node{}, err
		}
		ep, err := cat.Endpoint(ctx, name+s.suffix)
		if err == nil {
			return cat.NodeByID(ctx, ep.NodeID)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.Node{}, err
		}
	}
	ep, err := cat.Endpoint(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.Node{}, newError(CodeUnknownRelation, name, nil, "relation is not installed")
	}
	if err != nil {
		return store.Node{}, err
	}
	return cat.NodeByID(ctx, ep.NodeID)
}

// bindRelations rewrites a query to read the nodes its relations resolve to
// in scope s. It returns the rewritten SQL, the parent nodes, and whether any
// parent is policy-filtered.
func (c *Controller) bindRelations(ctx context.Context, cat *store.Catalog, q compiler.Query, s scope) (string, []store.Node, bool, error) {
	resolved := make(map[string]store.Node, len(q.Relations))
	var (
		parents  []store.Node
		filtered bool
	)
	for _, rel := range q.Relations {
		n, err := c.resolve(ctx, cat, s, rel)
		if err != nil {
			return "", nil, false, err
		}
		resolved[strings.ToLower(rel)] = n
		parents = append(parents, n)
		filtered = filtered || n.Filtered
	}

	sql := querysql.RenameRelations(q.SQL, func(name string) (string, bool) {
		n, ok := resolved[strings.ToLower(name)]
		if !ok || strings.EqualFold(n.Name, name) {
			return "", false
		}
		return n.Name, true
	})
	return sql, parents, filtered, nil
}

// SetSecurityConfig compiles and installs a security policy document.
//
// Every policy must name an installed base relation and every predicate must
// compile against it. The config replaces the previous one atomically and
// must be installed before the first universe is created.
func (c *Controller) SetSecurityConfig(ctx context.Context, doc string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	cfg, err := compiler.CompilePolicy([]byte(doc), "security-config")
	if err != nil {
		return newError(CodePolicyRejected, "", err, "compile security config")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range cfg.Tables() {
		if _, ok := c.table(name); !ok {
			return newError(CodeUnknownRelation, name, nil, "policy names an undeclared base relation")
		}
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return newError(CodePolicyRejected, "", err, "encode security config")
	}

	err = c.store.WithTx(ctx, func(cat *store.Catalog) error {
		universes, err := cat.Universes(ctx)
		if err != nil {
			return err
		}
		if len(universes) > 0 {
			return newError(CodePolicyRejected, "", nil, "security config must be installed before universes are created")
		}
		if err := validatePolicies(ctx, cat, cfg); err != nil {
			return err
		}
		return cat.PutSetting(ctx, settingSecurityConfig, string(encoded))
	})
	if err != nil {
		return err
	}

	if cfg.Empty() {
		c.policy = nil
		c.logger.Info("security config installed, no relation is filtered")
		return nil
	}
	c.policy = cfg
	c.logger.Info("security config installed",
		"policies", len(cfg.Policies),
		"groups", len(cfg.Groups),
		"tables", len(cfg.Tables()))
	return nil
}

// validatePolicies runs every predicate once with context attributes bound
// to NULL so SQLite reports unknown columns and syntax errors.
func validatePolicies(ctx context.Context, cat *store.Catalog, cfg *compiler.SecurityConfig) error {
	nullCtx := func(string) (string, error) { return "NULL", nil }

	check := func(table, pred string) error {
		bound, err := querysql.BindContext(pred, nullCtx)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("SELECT 1 FROM %s WHERE (%s) LIMIT 0", querysql.QuoteIdent(table), bound)
		if err := cat.Exec(ctx, stmt); err != nil {
			return newError(CodePolicyRejected, table, err, "predicate %q does not compile", pred)
		}
		return nil
	}

	for _, p := range cfg.Policies {
		if slices.Contains(querysql.ContextRefs(p.Predicate), compiler.GroupIDAttr) {
			return newError(CodePolicyRejected, p.Table, nil,
				"predicate %q reads ctx.%s outside a group", p.Predicate, compiler.GroupIDAttr)
		}
		if err := check(p.Table, p.Predicate); err != nil {
			return err
		}
	}
	for _, g := range cfg.Groups {
		stmt := fmt.Sprintf("SELECT %s, %s FROM (%s) LIMIT 0",
			querysql.QuoteIdent(compiler.GroupUserAttr), querysql.QuoteIdent(compiler.GroupIDAttr), g.Membership)
		if err := cat.Exec(ctx, stmt); err != nil {
			return newError(CodePolicyRejected, g.Name, err, "membership must yield %s and %s columns",
				compiler.GroupUserAttr, compiler.GroupIDAttr)
		}
		for _, p := range g.Policies {
			if err := check(p.Table, p.Predicate); err != nil {
				return err
			}
		}
	}
	return nil
}

// Inputs returns every write endpoint by name.
func (c *Controller) Inputs(ctx context.Context) (map[string]NodeID, error) {
	return c.endpoints(ctx, store.Input)
}

// Outputs returns every read endpoint by name.
func (c *Controller) Outputs(ctx context.Context) (map[string]NodeID, error) {
	return c.endpoints(ctx, store.Output)
}

func (c *Controller) endpoints(ctx context.Context, dir store.Direction) (map[string]NodeID, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	eps, err := c.store.Endpoints(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]NodeID, len(eps))
	for _, e := range eps {
		out[e.Name] = NodeID(e.NodeID)
	}
	return out, nil
}
