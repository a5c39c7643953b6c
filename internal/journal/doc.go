// Package journal records what happens to a kea store: every top-level
// dispatched action with the hash of the state it produced, and every
// mount/unmount transition with enough information to repeat it.
//
// Records are written through a Sink. Journal is the durable sink, a SQLite
// database with an append-only log; Memory keeps records in process for
// tests and traces.
//
// # Ordering
//
// Actions and lifecycle transitions share one logical clock per session.
// Reads always use ORDER BY seq ASC, never timestamps, so a session reads
// back identically every time.
//
// # Replay
//
// Replay mounts and dispatches a session's records into a fresh runtime and
// compares state hashes after every action. Actions dispatched from inside
// another dispatch (listeners) are not recorded: replaying the outer action
// produces them again.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Record IDs are content addressed via internal/ir/hash.go.
package journal
