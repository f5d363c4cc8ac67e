// Package notebook implements the notebook controller: it turns the full
// text of a document into cells and keeps their graph variables and
// published states current.
//
// ARCHITECTURE:
//
// SetDocument is the only way to change a notebook. It strips ignore
// lines, segments the text, assigns content-addressed ids and diffs them
// against the previous revision. Added cells are analyzed concurrently;
// then, inside one Loop.Exclusive section, removed cells are deleted from
// the graph and added cells are defined. Computation continues on the loop
// after SetDocument returns.
//
// Sinks:
// A cell function receives display, view and report_outputs as native
// functions bound to the version of the computation that created them.
// A call from an older version is discarded; a call from a newer version
// resets what the sink accumulated before appending.
//
// Every state change publishes a fresh ir.Snapshot to subscribers.
// Snapshots hold exported Go data (interp.Export), never interpreter
// values, so they can be read from any goroutine.
package notebook
