package harness

import "github.com/roach88/noticeable/internal/ir"

// TraceEvent is one recorded cell transition, with the cell's code
// alongside its id so failures read naturally.
type TraceEvent struct {
	Revision string       `json:"revision"`
	Seq      int64        `json:"seq"`
	CellID   string       `json:"cell_id"`
	Cell     string       `json:"cell"`
	Kind     ir.CellKind  `json:"kind"`
	State    ir.StateKind `json:"state,omitempty"`
	Value    any          `json:"value,omitempty"`
	Error    string       `json:"error,omitempty"`
	Line     int          `json:"line,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Revisions are the recorded revisions, oldest first.
	Revisions []ir.Revision `json:"revisions"`

	// Trace contains every recorded transition in order.
	Trace []TraceEvent `json:"trace"`

	// Final is the snapshot after the last step settled.
	Final ir.Snapshot `json:"final"`

	// Console is everything cells wrote to the console.
	Console string `json:"console,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Revisions: []ir.Revision{},
		Trace:     []TraceEvent{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
