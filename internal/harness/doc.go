// Package harness runs kea scenarios: YAML files that load CUE logic
// definitions, mount, unmount and dispatch against them, and assert on
// values, mount state, the state tree and the recorded trace.
//
// # Scenario Format
//
//	name: counter_view
//	description: "view imports the counter and logs every increment"
//	specs:
//	  - logic.cue
//	steps:
//	  - mount: view
//	    props: { id: a }
//	  - dispatch: increment
//	    logic: view
//	    props: { id: a }
//	    args: [2]
//	  - unmount: view
//	    props: { id: a }
//	assertions:
//	  - type: value
//	    logic: view
//	    props: { id: a }
//	    selector: total
//	    expect: 2
//	  - type: trace_order
//	    entries: ["mount counters.a", "mount logic.view.a"]
//
// A step may set key instead of (or as well as) props to address a keyed
// logic directly, and error to expect the step to fail with a kea error
// code.
//
// # Assertion Types
//
//   - value: a selector of a built logic equals expect
//   - mounted: the logic cached at identity is (or is not) mounted
//   - mount_count: the logic cached at identity holds count mounts
//   - state: the state tree at path equals expect
//   - trace_order: trace entries appear in the given order
//   - trace_count: a trace entry appears exactly count times
//
// Trace entries read "mount <identity>", "unmount <identity>" and
// "action <type>".
//
// # Deterministic Traces
//
// Every scenario runs in a fresh runtime and store with a fixed session ID
// and a deterministic logical clock, recorded into an in-memory journal.
// The same scenario always yields the same trace, which RunWithGolden
// compares against testdata/golden.
package harness
