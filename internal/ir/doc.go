// Package ir provides the foundational value types shared by the kea runtime,
// the reference store, the compiler and the journal.
//
// This package imports nothing internal. Everything else builds on it:
//   - Path and Action, the addressing and message types of the state tree
//   - Reducer, the pure state transition function attached at a Path
//   - GetIn/SetIn/DeleteIn, copy-on-write helpers over map[string]any trees
//   - Same, the identity comparison used for memoization
//   - MarshalCanonical and the domain-separated hashes used for fingerprints,
//     state hashes and journal record IDs
//   - LogicSpec, the declarative (data only) form of a logic definition
//
// Key design constraints:
//   - NO float types in canonical JSON - numbers are int64
//   - All JSON tags use snake_case
//   - Tree helpers never mutate their input; unchanged subtrees keep identity
package ir
