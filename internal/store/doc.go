// Package store provides the SQLite database behind the engine.
//
// One database holds two things:
//   - The catalog: dataflow nodes, their edges, named endpoints, provisioned
//     universes and settings (catalog_* tables, see schema.sql)
//   - Data relations: one SQLite table or view per node, named after it
//
// # Catalog
//
// Nodes are ordered by seq, a logical clock value assigned by the engine, so
// listing is deterministic. Node and endpoint names are case-insensitive,
// matching SQLite's identifier rules.
//
// Universes store their tenant context as two JSON arrays (attribute names
// and values) so the context's insertion order survives.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One connection: an in-memory database lives as long as the Store
//
// Statements are built with squirrel; DDL for data relations is produced by
// the engine and passed through Exec.
package store
