package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/noticeable/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %q %s\n", i+1, event.Revision, event.Cell, describe(event))
		}
	}

	return buf.String()
}

func describe(e TraceEvent) string {
	switch {
	case e.Kind == ir.KindMarkdown:
		return StateMarkdown
	case e.State == ir.StateRejected:
		return fmt.Sprintf("rejected: %s", e.Error)
	case e.State == ir.StateFulfilled:
		return fmt.Sprintf("fulfilled %s", jsonText(e.Value))
	}
	return string(e.State)
}

// EvaluateAssertions runs all assertions and returns error messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTransitionContains:
			err = assertTransitionContains(result.Trace, a)
		case AssertTransitionOrder:
			err = assertTransitionOrder(result.Trace, a)
		case AssertTransitionCount:
			err = assertTransitionCount(result.Trace, a)
		case AssertRevisionCount:
			err = assertRevisionCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTransitionContains checks the cell reached the state, with the
// value if one is given.
func assertTransitionContains(trace []TraceEvent, a Assertion) error {
	cell := strings.TrimSpace(a.Cell)
	for _, e := range trace {
		if e.Cell != cell || string(e.State) != a.State {
			continue
		}
		if a.Value == nil || valuesEqual(a.Value, e.Value) {
			return nil
		}
	}

	expected := fmt.Sprintf("cell %q %s", cell, a.State)
	if a.Value != nil {
		expected += " with value " + jsonText(a.Value)
	}
	return &AssertionError{
		Type:     AssertTransitionContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTransitionOrder checks the cell's states appear in order.
// States don't need to be consecutive.
func assertTransitionOrder(trace []TraceEvent, a Assertion) error {
	cell := strings.TrimSpace(a.Cell)
	var seen []string
	next := 0
	for _, e := range trace {
		if e.Cell != cell {
			continue
		}
		seen = append(seen, string(e.State))
		if next < len(a.States) && string(e.State) == a.States[next] {
			next++
		}
	}
	if next == len(a.States) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTransitionOrder,
		Expected: fmt.Sprintf("cell %q states in order %v", cell, a.States),
		Actual:   fmt.Sprintf("states %v", seen),
		Trace:    trace,
	}
}

// assertTransitionCount checks the number of transitions matching the
// cell and state. Empty fields match everything.
func assertTransitionCount(trace []TraceEvent, a Assertion) error {
	cell := strings.TrimSpace(a.Cell)
	count := 0
	for _, e := range trace {
		if cell != "" && e.Cell != cell {
			continue
		}
		if a.State != "" && string(e.State) != a.State {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTransitionCount,
		Expected: fmt.Sprintf("%d transitions (cell %q, state %q)", a.Count, cell, a.State),
		Actual:   fmt.Sprintf("%d transitions", count),
		Trace:    trace,
	}
}

func assertRevisionCount(result *Result, a Assertion) error {
	if len(result.Revisions) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRevisionCount,
		Expected: fmt.Sprintf("%d revisions", a.Count),
		Actual:   fmt.Sprintf("%d revisions", len(result.Revisions)),
	}
}

// checkStep compares a settled snapshot against a step's expectations.
func checkStep(index int, step Step, snap ir.Snapshot, console string) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("steps[%d]: ", index)+fmt.Sprintf(format, args...))
	}

	for _, e := range step.Expect {
		code := strings.TrimSpace(e.Cell)
		st, found := findCell(snap, code)
		if e.Absent {
			if found {
				fail("cell %q: expected absent", code)
			}
			continue
		}
		if !found {
			fail("cell %q: not found", code)
			continue
		}
		for _, msg := range matchCell(e, st) {
			fail("cell %q: %s", code, msg)
		}
	}

	if step.Console != "" && !strings.Contains(console, step.Console) {
		fail("console: expected %q in %q", step.Console, console)
	}
	return errs
}

func findCell(snap ir.Snapshot, code string) (ir.CellState, bool) {
	for _, cell := range snap.Cells {
		if strings.TrimSpace(cell.Code) == code {
			st, ok := snap.CellStates[cell.ID]
			return st, ok
		}
	}
	return ir.CellState{}, false
}

// matchCell returns one message per field of e that st does not match.
func matchCell(e CellExpect, st ir.CellState) []string {
	var msgs []string

	state := string(st.Variable.Kind)
	if st.Kind == ir.KindMarkdown {
		state = StateMarkdown
	}
	if e.State != "" && e.State != state {
		msg := fmt.Sprintf("state: expected %s, got %s", e.State, state)
		if st.Variable.Err != nil {
			msg += fmt.Sprintf(" (%v)", st.Variable.Err)
		}
		msgs = append(msgs, msg)
	}

	if e.Value != nil && !valuesEqual(e.Value, st.Variable.Value) {
		msgs = append(msgs, fmt.Sprintf("value: expected %s, got %s", jsonText(e.Value), jsonText(st.Variable.Value)))
	}

	if e.Displays != nil && !valuesEqual(e.Displays, st.Displays) {
		msgs = append(msgs, fmt.Sprintf("displays: expected %s, got %s", jsonText(e.Displays), jsonText(st.Displays)))
	}

	for name, want := range e.Outputs {
		got, ok := outputValue(st, name)
		switch {
		case !ok:
			msgs = append(msgs, fmt.Sprintf("output %s: missing", name))
		case !valuesEqual(want, got):
			msgs = append(msgs, fmt.Sprintf("output %s: expected %s, got %s", name, jsonText(want), jsonText(got)))
		}
	}

	if e.Error != "" {
		switch {
		case st.Variable.Err == nil:
			msgs = append(msgs, fmt.Sprintf("error: expected %q, got none", e.Error))
		case !strings.Contains(st.Variable.Err.Error(), e.Error):
			msgs = append(msgs, fmt.Sprintf("error: expected %q in %q", e.Error, st.Variable.Err.Error()))
		}
	}

	if e.Line != 0 && e.Line != st.Variable.Line {
		msgs = append(msgs, fmt.Sprintf("line: expected %d, got %d", e.Line, st.Variable.Line))
	}

	if e.Markdown != "" && e.Markdown != st.Markdown {
		msgs = append(msgs, fmt.Sprintf("markdown: expected %q, got %q", e.Markdown, st.Markdown))
	}

	return msgs
}

func outputValue(st ir.CellState, name string) (any, bool) {
	for _, o := range st.Outputs {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

// valuesEqual compares YAML-decoded expectations with exported cell values
// through their JSON form, so 12 matches 12.0 and records match maps.
func valuesEqual(want, got any) bool {
	return reflect.DeepEqual(normalize(want), normalize(got))
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
