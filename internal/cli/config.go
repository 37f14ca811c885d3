package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides, e.g. PIAZZA_NUSERS.
const EnvPrefix = "PIAZZA"

// Config is the benchmark configuration. Values come from flags,
// PIAZZA_* environment variables and piazza.yaml, in that order.
type Config struct {
	Schema   string `mapstructure:"schema"`
	Queries  string `mapstructure:"queries"`
	Policies string `mapstructure:"policies"`

	// Graph is the graphviz output path. Empty skips the dump.
	Graph string `mapstructure:"graph"`

	// Info is the prefix for /proc/self/status snapshots. Empty disables them.
	Info string `mapstructure:"info"`

	Reuse   string `mapstructure:"reuse"`
	Shard   bool   `mapstructure:"shard"`
	Shards  int    `mapstructure:"shards"`
	Partial bool   `mapstructure:"partial"`

	// DB stores the engine graph in a SQLite file instead of memory.
	DB string `mapstructure:"db"`

	Populate bool    `mapstructure:"populate"`
	Users    int     `mapstructure:"nusers"`
	Logged   int     `mapstructure:"nlogged"`
	Classes  int     `mapstructure:"nclasses"`
	Posts    int     `mapstructure:"nposts"`
	Private  float64 `mapstructure:"private"`
	TAs      float64 `mapstructure:"tas"`
	Seed     uint64  `mapstructure:"seed"`

	// Settle is how long the driver waits after populating.
	Settle time.Duration `mapstructure:"settle"`

	// Workers is the number of concurrent logins. 1 logs users in order.
	Workers int `mapstructure:"workers"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// DefaultConfig returns the benchmark defaults.
func DefaultConfig() *Config {
	return &Config{
		Schema:   "benchmarks/piazza/schema.sql",
		Queries:  "benchmarks/piazza/post-queries.sql",
		Policies: "benchmarks/piazza/ta-policies.json",
		Graph:    "pgraph.gv",
		Reuse:    "full",
		Users:    1000,
		Logged:   1000,
		Classes:  100,
		Posts:    100000,
		Private:  0.1,
		TAs:      0.05,
		Seed:     42,
		Settle:   2 * time.Second,
		Workers:  1,
	}
}

// bindConfigFlags registers the Config flags on flags with defaults from cfg.
func bindConfigFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.String("schema", cfg.Schema, "schema recipe file")
	flags.String("queries", cfg.Queries, "query recipe file")
	flags.String("policies", cfg.Policies, "security policy file")
	flags.StringP("graph", "g", cfg.Graph, "file to dump the dataflow graph to (empty to skip)")
	flags.StringP("info", "i", cfg.Info, "prefix for runtime process info snapshots")
	flags.String("reuse", cfg.Reuse, "query reuse algorithm (noreuse|finkelstein|relaxed|full)")
	flags.Bool("shard", cfg.Shard, "enable sharding")
	flags.Int("shards", cfg.Shards, "shard factor when sharding (0 for the default)")
	flags.Bool("partial", cfg.Partial, "enable partial materialization")
	flags.String("db", cfg.DB, "SQLite file for the engine graph (default: in memory)")
	flags.Bool("populate", cfg.Populate, "populate tables with generated data")
	flags.IntP("nusers", "u", cfg.Users, "number of users in the db")
	flags.IntP("nlogged", "l", cfg.Logged, "number of logged users (at most nusers)")
	flags.IntP("nclasses", "c", cfg.Classes, "number of classes in the db")
	flags.IntP("nposts", "p", cfg.Posts, "number of posts in the db")
	flags.Float64("private", cfg.Private, "fraction of private posts")
	flags.Float64("tas", cfg.TAs, "fraction of class roles that are TAs")
	flags.Uint64("seed", cfg.Seed, "workload random seed")
	flags.Duration("settle", cfg.Settle, "wait after populating before logging users in")
	flags.Int("workers", cfg.Workers, "concurrent logins")
	flags.String("metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
}

// loadConfig resolves the command's Config from its flags, the environment
// and the config file. A missing default config file is not an error; a
// missing explicit one is.
func loadConfig(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("piazza")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
