// Package ir provides the typed scalar values and tenant contexts exchanged
// between the benchmark driver, the orchestrator and the dataflow engine.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are scalars only: Null, String, Int, Bool. No floats.
//   - Context preserves attribute insertion order, since rows written to a
//     tenant's context relation follow that order.
//   - Content-derived identities (universe keys) use canonical JSON with
//     sorted keys, so two contexts with the same attributes hash equally
//     regardless of insertion order.
package ir
