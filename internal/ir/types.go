package ir

import (
	"encoding/json"
	"slices"
)

// Fragment is one raw cell as cut out of a document by the segmenter.
type Fragment struct {
	Code         string `json:"code"`
	FirstLineNum int    `json:"first_line_num"` // 0-based line of the document
}

// Cell is a fragment paired with its content-addressed identity.
type Cell struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	FirstLineNum int    `json:"first_line_num"`
}

// Delta is the outcome of comparing two cell lists.
// Removed follows the previous document order, Added the new one.
type Delta struct {
	Removed []string `json:"removed"`
	Added   []string `json:"added"`
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// StateKind is the settlement state of a cell's computation.
type StateKind string

const (
	StatePending   StateKind = "pending"
	StateFulfilled StateKind = "fulfilled"
	StateRejected  StateKind = "rejected"
)

// VariableState is the observable state of one graph variable.
type VariableState struct {
	Kind  StateKind `json:"type"`
	Value any       `json:"-"` // cell value when fulfilled
	Err   error     `json:"-"` // reason when rejected
	Line  int       `json:"line,omitempty"` // 1-based document line of the failure, 0 if unknown
}

// Pending returns the pending state.
func Pending() VariableState { return VariableState{Kind: StatePending} }

// Fulfilled returns a fulfilled state carrying v.
func Fulfilled(v any) VariableState { return VariableState{Kind: StateFulfilled, Value: v} }

// Rejected returns a rejected state carrying err.
func Rejected(err error) VariableState { return VariableState{Kind: StateRejected, Err: err} }

// MarshalJSON writes the state with its value when fulfilled and its
// error text when rejected.
func (s VariableState) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind  StateKind `json:"type"`
		Value any       `json:"value,omitempty"`
		Error string    `json:"error,omitempty"`
		Line  int       `json:"line,omitempty"`
	}{Kind: s.Kind, Line: s.Line}
	switch s.Kind {
	case StateFulfilled:
		out.Value = s.Value
	case StateRejected:
		if s.Err != nil {
			out.Error = s.Err.Error()
		}
	}
	return json.Marshal(out)
}

// Settled reports whether the state is fulfilled or rejected.
func (s VariableState) Settled() bool {
	return s.Kind == StateFulfilled || s.Kind == StateRejected
}

// CellKind distinguishes code cells from markdown cells.
type CellKind string

const (
	KindCode     CellKind = "code"
	KindMarkdown CellKind = "markdown"
)

// NamedValue is one reported output binding.
type NamedValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// CellState is the published execution state of one cell.
// Markdown cells only carry Markdown; code cells carry the rest.
type CellState struct {
	Kind       CellKind      `json:"type"`
	Variable   VariableState `json:"variable_state"`
	Displays   []any         `json:"displays,omitempty"`
	Outputs    []NamedValue  `json:"outputs,omitempty"`
	Transpiled string        `json:"transpiled,omitempty"`
	Markdown   string        `json:"markdown,omitempty"`
}

// Clone returns a copy whose slices can be changed independently.
func (s CellState) Clone() CellState {
	s.Displays = slices.Clone(s.Displays)
	s.Outputs = slices.Clone(s.Outputs)
	return s
}

// Output returns the reported value of name.
func (s CellState) Output(name string) (any, bool) {
	for _, o := range s.Outputs {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

// Snapshot is the read-only view of a notebook published to observers.
//
// Invariant: every id in Cells has an entry in CellStates once processing
// of the revision began, and CellStates holds no id absent from Cells.
type Snapshot struct {
	Revision   string               `json:"revision"`
	Seq        int64                `json:"seq"` // logical clock, increases on every publish
	Cells      []Cell               `json:"cells"`
	CellStates map[string]CellState `json:"cell_states"`
}

// State returns the state of the cell with the given id.
func (s Snapshot) State(id string) (CellState, bool) {
	st, ok := s.CellStates[id]
	return st, ok
}

// CellByCode returns the first cell whose code equals code.
func (s Snapshot) CellByCode(code string) (Cell, bool) {
	for _, c := range s.Cells {
		if c.Code == code {
			return c, true
		}
	}
	return Cell{}, false
}

// Revision records one SetDocument call.
type Revision struct {
	ID      string   `json:"id"`
	Seq     int64    `json:"seq"`
	Text    string   `json:"text"`
	Cells   []string `json:"cells"` // ids in document order
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Transition records one published change of a cell's state.
type Transition struct {
	Revision string    `json:"revision"`
	Seq      int64     `json:"seq"`
	CellID   string    `json:"cell_id"`
	Kind     CellKind  `json:"kind"`
	State    StateKind `json:"state,omitempty"` // empty for markdown cells
	Value    any       `json:"value,omitempty"`
	Error    string    `json:"error,omitempty"`
	Line     int       `json:"line,omitempty"`
	// Displays and Outputs are set on settled transitions only.
	Displays []any        `json:"displays,omitempty"`
	Outputs  []NamedValue `json:"outputs,omitempty"`
}
