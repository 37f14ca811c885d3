// Package engine implements the multi-tenant dataflow engine the benchmark
// drives.
//
// ARCHITECTURE:
//
// The graph lives in one SQLite database (see package store). Every node is
// a SQLite object named after it:
//   - base relations are tables (or, when sharded, a UNION ALL view over
//     hash-partitioned shard tables)
//   - recipe queries and policy filters are views when the engine is
//     partial, and tables kept fresh by the worker pool otherwise
//   - each universe adds a context relation UserContext_<id> and its own
//     copies of filtered relations and queries, suffixed _u<id>
//
// Universe Instantiation:
// A universe reads a covered relation T through T_u<id>, which keeps the rows
// any policy on T admits. ctx.<attr> in a predicate reads the tenant's
// context relation, so the filter is empty until the tenant's context row is
// written. Queries are rewritten to read the universe's nodes. The reuse
// strategy decides what is shared instead of copied:
//
//	noreuse      private copy of every relation and query
//	finkelstein  uncovered relations shared, queries private
//	relaxed      queries that read no filtered node shared as well
//	full         identical definitions folded onto one node as well
//
// Materialization:
// Writes go straight to base tables. When the engine is not partial, a write
// schedules the dependents of the written node on a deduplicating FIFO queue
// and a fixed pool of workers recomputes them level by level. Quiesce waits
// until the queue drains.
//
// Graph mutations are serialized and transactional: a rejected recipe,
// security config or universe leaves the graph unchanged.
package engine
