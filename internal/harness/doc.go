// Package harness runs notebook scenarios for conformance testing.
//
// A scenario is a YAML file describing a sequence of documents fed to one
// notebook, with expectations on the settled cell states after each step
// and assertions on the recorded transition journal:
//
//	name: reference_before_definition
//	description: A cell may read a name defined later in the document
//	steps:
//	  - document: |
//	      a + 10
//
//	      const a = 1 + 1
//	    expect:
//	      - cell: "a + 10"
//	        state: fulfilled
//	        displays: [12]
//	assertions:
//	  - type: transition_order
//	    cell: "a + 10"
//	    states: [pending, fulfilled]
//
// # Assertion Types
//
//   - transition_contains: a cell reached a state (optionally with a value)
//   - transition_order: a cell passed through states in order
//   - transition_count: transitions matching cell and state occur N times
//   - revision_count: the journal holds N revisions
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - Sequential revision tokens (testutil.SequenceGenerator)
//   - A fixed wall clock (testutil.ManualClock) and virtual timers
//   - An in-memory SQLite journal (isolated per run)
//
// The same scenario therefore produces byte-identical golden snapshots
// across runs.
package harness
