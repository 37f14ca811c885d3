package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/piazza/internal/backend"
	"github.com/roach88/piazza/internal/metrics"
	"github.com/roach88/piazza/internal/report"
	"github.com/roach88/piazza/internal/workload"
)

// InfoEvery is the login interval between process status snapshots.
const InfoEvery = 50

// procStatusPath is copied to <info>-<i> every InfoEvery logins.
var procStatusPath = "/proc/self/status"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// IDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs report.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Piazza benchmark",
		Long: `Run the Piazza benchmark.

Installs the schema, the security policies and the queries, optionally
populates the tables with generated data, then logs in nlogged users one
universe each, timing every login. Prints the materialization size and
dumps the dataflow graph.

Every flag can also be set with a PIAZZA_ environment variable (dashes
become underscores, e.g. PIAZZA_METRICS_ADDR) or in piazza.yaml.

Exit codes:
  0 - Benchmark completed (failed logins are reported, not fatal)
  1 - Benchmark interrupted
  2 - Command error (bad flags, unreadable files, rejected recipe)

Examples:
  piazza run --populate
  piazza run --populate --partial --reuse finkelstein -u 500 -l 100
  piazza run --populate --workers 4 --metrics-addr :9090 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return runBenchmark(opts, cfg, cmd)
		},
	}

	bindConfigFlags(cmd.Flags(), DefaultConfig())
	return cmd
}

func runBenchmark(opts *RunOptions, cfg *Config, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	out := cmd.OutOrStdout()

	if err := workload.ValidateLogins(cfg.Users, cfg.Logged); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cfg.Workers < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid configuration: workers must be at least 1, got %d", cfg.Workers))
	}
	gen, err := workload.New(workload.Config{
		Users:   cfg.Users,
		Classes: cfg.Classes,
		Posts:   cfg.Posts,
		Private: cfg.Private,
		TAs:     cfg.TAs,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		srv, err := metrics.Listen(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("error stopping metrics server", "error", err)
			}
		}()
	}

	ids := opts.IDs
	if ids == nil {
		ids = report.UUIDv7Generator{}
	}
	rec := report.NewRecorder(ids, report.Params{
		Reuse:    cfg.Reuse,
		Partial:  cfg.Partial,
		Shards:   shardFactor(cfg),
		Populate: cfg.Populate,
		Users:    cfg.Users,
		Logged:   cfg.Logged,
		Classes:  cfg.Classes,
		Posts:    cfg.Posts,
		Private:  cfg.Private,
	})
	logger.Info("starting benchmark", "run", rec.RunID())

	b, err := backend.New(ctx, backend.Config{
		Partial: cfg.Partial,
		Shard:   cfg.Shard,
		Shards:  cfg.Shards,
		Reuse:   cfg.Reuse,
		Path:    cfg.DB,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start backend", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("error closing backend", "error", err)
		}
	}()

	logger.Info("initializing database schema")
	if err := install(ctx, b, cfg, rec); err != nil {
		return err
	}

	if cfg.Populate {
		logger.Info("populating tables", "users", cfg.Users, "classes", cfg.Classes, "posts", cfg.Posts)
		start := time.Now()
		stats, err := gen.Populate(ctx, b)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to populate tables", err)
		}
		rec.Phase("populate", time.Since(start))
		logger.Info("tables populated",
			"posts", stats.Posts, "private", stats.Private, "roles", stats.Roles, "tas", stats.TAs)
	}

	logger.Info("finished writing, settling", "settle", cfg.Settle)
	if err := sleep(ctx, cfg.Settle); err != nil {
		return WrapExitError(ExitFailure, "benchmark interrupted", err)
	}
	if err := b.Quiesce(ctx); err != nil {
		return WrapExitError(ExitFailure, "benchmark interrupted", err)
	}

	logger.Info("logging in users", "users", cfg.Logged, "workers", cfg.Workers)
	failed := loginUsers(ctx, b, cfg, rec, opts.Format == "text", cmd, logger)
	if err := ctx.Err(); err != nil {
		return WrapExitError(ExitFailure, "benchmark interrupted", err)
	}

	mat, err := b.Materialization(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to measure materialization", err)
	}
	if err := rec.Finish(mat.Rows, mat.Views).Write(out, opts.Format); err != nil {
		return err
	}

	if cfg.Graph != "" {
		dot, err := b.Graphviz(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render graph", err)
		}
		if err := os.WriteFile(cfg.Graph, []byte(dot), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write graph", err)
		}
		logger.Debug("graph written", "path", cfg.Graph)
	}

	logger.Info("done with benchmark", "failed_logins", failed)
	return nil
}

// install runs the schema, security config and recipe installs, timing each.
func install(ctx context.Context, b *backend.Backend, cfg *Config, rec *report.Recorder) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"schema", func() error { return b.Migrate(ctx, cfg.Schema, "") }},
		{"security", func() error {
			if cfg.Policies == "" {
				return nil
			}
			return b.SetSecurityConfig(ctx, cfg.Policies)
		}},
		{"recipe", func() error { return b.Migrate(ctx, cfg.Schema, cfg.Queries) }},
	}
	for _, step := range steps {
		start := time.Now()
		if err := step.run(); err != nil {
			return WrapExitError(ExitCommandError, "failed to install "+step.name, err)
		}
		rec.Phase(step.name, time.Since(start))
	}
	return nil
}

// loginUsers logs in the first cfg.Logged users and returns the number of
// failed logins. Users are logged in in batches that end on every
// InfoEvery-th user so process status snapshots line up with login counts.
func loginUsers(ctx context.Context, b *backend.Backend, cfg *Config, rec *report.Recorder, progress bool, cmd *cobra.Command, logger *slog.Logger) int {
	tenants := workload.Tenants(cfg.Logged)
	failed := 0
	for start := 0; start < len(tenants); {
		last := min(nextSnapshot(start), len(tenants)-1)
		for _, r := range b.LoginAll(ctx, tenants[start:last+1], cfg.Workers) {
			rec.Login(r.Duration, r.Err)
			if r.Err != nil {
				failed++
				logger.Warn("login failed", "user", r.TenantID, "error", r.Err)
			}
			if progress {
				fmt.Fprintf(cmd.OutOrStdout(), "Migration %d took %.2fs!\n", start+r.Index, r.Duration.Seconds())
			}
		}
		if cfg.Info != "" && last%InfoEvery == 0 {
			snapshotStatus(cfg.Info, last, logger)
		}
		start = last + 1
	}
	return failed
}

// nextSnapshot returns the first login index at or after i that is
// followed by a status snapshot.
func nextSnapshot(i int) int {
	return (i + InfoEvery - 1) / InfoEvery * InfoEvery
}

// snapshotStatus copies the process status file to <prefix>-<i>. Systems
// without the file are skipped.
func snapshotStatus(prefix string, i int, logger *slog.Logger) {
	data, err := os.ReadFile(procStatusPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("process status not available", "path", procStatusPath)
		return
	}
	if err != nil {
		logger.Warn("failed to read process status", "error", err)
		return
	}
	name := fmt.Sprintf("%s-%d", prefix, i)
	if err := os.WriteFile(name, data, 0o644); err != nil {
		logger.Warn("failed to write process status", "path", name, "error", err)
	}
}

// shardFactor is the shard count the engine runs with, 0 when unsharded.
func shardFactor(cfg *Config) int {
	switch {
	case !cfg.Shard:
		return 0
	case cfg.Shards > 0:
		return cfg.Shards
	default:
		return backend.DefaultShards
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
