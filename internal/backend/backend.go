// Package backend orchestrates the benchmark against an engine handle:
// base schema installation, security config, schema plus queries, tenant
// logins and materialization accounting.
//
// Every operation is synchronous. The backend holds no locks; the engine
// serializes graph changes itself.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/piazza/internal/compiler"
	"github.com/roach88/piazza/internal/engine"
	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/metrics"
)

// Workers is the engine worker pool size the benchmark runs with.
const Workers = 2

// DefaultShards is the shard factor used when sharding is enabled without
// an explicit factor.
const DefaultShards = 2

// Config selects the engine configuration.
type Config struct {
	// Partial selects lazily computed outputs.
	Partial bool

	// Shard enables hash partitioning of base relations.
	Shard bool

	// Shards is the shard factor. Zero means DefaultShards.
	Shards int

	// Reuse is one of noreuse, finkelstein, relaxed, full.
	Reuse string

	// Path stores the engine graph in a SQLite file. Empty means memory.
	Path string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Backend drives one engine instance.
type Backend struct {
	h       Handle
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New validates cfg and starts an engine. An unknown reuse name fails
// before the engine is created.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	reuse, err := engine.ParseReuse(cfg.Reuse)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	shards := 0
	if cfg.Shard {
		shards = cfg.Shards
		if shards == 0 {
			shards = DefaultShards
		}
	}

	opts := []engine.Option{
		engine.WithWorkers(Workers),
		engine.WithPartial(cfg.Partial),
		engine.WithSharding(shards),
		engine.WithReuse(reuse),
		engine.WithLogger(logger.With("component", "engine")),
	}
	if cfg.Path != "" {
		opts = append(opts, engine.WithPath(cfg.Path))
	}

	c, err := engine.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return FromHandle(controllerHandle{c}, logger, cfg.Metrics), nil
}

// FromHandle wraps an existing engine handle.
func FromHandle(h Handle, logger *slog.Logger, m *metrics.Metrics) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{h: h, logger: logger, metrics: m}
}

// Handle returns the underlying engine handle.
func (b *Backend) Handle() Handle { return b.h }

// Close stops the engine.
func (b *Backend) Close() error { return b.h.Close() }

// Migrate installs the schema file, followed by the query file when
// queryPath is non-empty, as one recipe.
//
// The driver migrates twice: schema alone before the security config, then
// schema and queries after it, so every query is built with the policies in
// effect. The repeated schema declarations are no-ops.
func (b *Backend) Migrate(ctx context.Context, schemaPath, queryPath string) error {
	recipe, err := compiler.LoadRecipe(schemaPath, queryPath)
	if err != nil {
		return err
	}

	phase := "schema"
	if queryPath != "" {
		phase = "recipe"
	}
	start := time.Now()
	if err := b.h.InstallRecipe(ctx, recipe); err != nil {
		return fmt.Errorf("install %s: %w", phase, err)
	}
	b.metrics.ObserveMigrate(phase, time.Since(start))
	b.logger.Debug("recipe installed", "phase", phase, "schema", schemaPath, "queries", queryPath)
	return nil
}

// SetSecurityConfig installs the policy document at path. The engine either
// replaces the active config or rejects the document entirely.
func (b *Backend) SetSecurityConfig(ctx context.Context, path string) error {
	doc, err := compiler.LoadPolicy(path)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := b.h.SetSecurityConfig(ctx, doc); err != nil {
		return fmt.Errorf("install security config: %w", err)
	}
	b.metrics.ObserveMigrate("security", time.Since(start))
	b.logger.Debug("security config installed", "path", path)
	return nil
}

// Login provisions a tenant: the engine creates (or reuses) the tenant's
// universe, then the context values are written, in insertion order, as one
// row of UserContext_<id>.
//
// Failures are returned as *LoginError. There is no retry and no dedup here;
// repeated logins with an identical context reuse the universe and write the
// context row again.
func (b *Backend) Login(ctx context.Context, uctx ir.Context) (err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveLogin(time.Since(start), err) }()

	id, err := uctx.ID()
	if err != nil {
		return &LoginError{Step: StepUniverse, Err: err}
	}
	tenant := id.String()

	if err := b.h.CreateUniverse(ctx, uctx); err != nil {
		return &LoginError{TenantID: tenant, Step: StepUniverse, Err: err}
	}

	w, err := b.writer(ctx, engine.ContextRelation(tenant))
	if err != nil {
		return &LoginError{TenantID: tenant, Step: StepResolve, Err: err}
	}
	if err := w.Put(ctx, uctx.Values()); err != nil {
		return &LoginError{TenantID: tenant, Step: StepWrite, Err: err}
	}
	return nil
}

// Writer resolves a named input from the engine's current input set.
func (b *Backend) Writer(ctx context.Context, input string) (Writer, error) {
	return b.writer(ctx, input)
}

func (b *Backend) writer(ctx context.Context, input string) (Writer, error) {
	inputs, err := b.h.Inputs(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := inputs[input]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInput, input)
	}
	return b.h.Mutator(ctx, id)
}

// Write appends rows to a named input.
func (b *Backend) Write(ctx context.Context, input string, rows ...ir.Row) error {
	w, err := b.writer(ctx, input)
	if err != nil {
		return fmt.Errorf("write %s: %w", input, err)
	}
	for i, row := range rows {
		if err := w.Put(ctx, row); err != nil {
			b.metrics.AddRows(input, i)
			return fmt.Errorf("write %s row %d: %w", input, i, err)
		}
	}
	b.metrics.AddRows(input, len(rows))
	return nil
}

// Materialization is a point-in-time size of every output.
type Materialization struct {
	Rows  int
	Views int
}

// Average returns rows per view, or 0 when there are no views.
func (m Materialization) Average() float64 {
	if m.Views == 0 {
		return 0
	}
	return float64(m.Rows) / float64(m.Views)
}

// Materialization waits for pending refreshes, then counts the rows of
// every output that exists now. Outputs created while counting are not
// included.
func (b *Backend) Materialization(ctx context.Context) (Materialization, error) {
	if err := b.h.Quiesce(ctx); err != nil {
		return Materialization{}, fmt.Errorf("quiesce: %w", err)
	}
	outputs, err := b.h.Outputs(ctx)
	if err != nil {
		return Materialization{}, fmt.Errorf("list outputs: %w", err)
	}

	m := Materialization{Views: len(outputs)}
	for name, id := range outputs {
		r, err := b.h.Getter(ctx, id)
		if err != nil {
			return Materialization{}, fmt.Errorf("output %s: %w", name, err)
		}
		n, err := r.Len(ctx)
		if err != nil {
			return Materialization{}, fmt.Errorf("output %s: %w", name, err)
		}
		m.Rows += n
	}
	b.metrics.SetMaterialization(m.Rows, m.Views)
	return m, nil
}

// Size returns the total row count across all outputs. With no outputs it
// is 0.
func (b *Backend) Size(ctx context.Context) (int, error) {
	m, err := b.Materialization(ctx)
	return m.Rows, err
}

// Quiesce waits for the engine to finish refreshing materialized outputs.
func (b *Backend) Quiesce(ctx context.Context) error {
	return b.h.Quiesce(ctx)
}

// Graphviz returns the engine's dataflow graph in DOT.
func (b *Backend) Graphviz(ctx context.Context) (string, error) {
	return b.h.Graphviz(ctx)
}
