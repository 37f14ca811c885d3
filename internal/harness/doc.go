// Package harness runs YAML benchmark scenarios against a fresh in-memory
// engine and checks the outcome.
//
// A scenario names a schema, optional queries and an optional security
// config, then runs a flow of writes and logins. Assertions check output row
// counts, relation contents and the total size. RunWithGolden additionally
// compares a canonical JSON snapshot of the run and the dataflow graph with
// golden files under testdata/golden.
//
// Install order follows the benchmark driver: schema, security config,
// schema plus queries.
package harness
