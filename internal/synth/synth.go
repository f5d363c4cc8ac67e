package synth

import (
	"strconv"
	"strings"

	"github.com/roach88/noticeable/internal/analyzer"
)

// Sink parameter names. These are supplied by the controller, never
// resolved against other cells.
const (
	SinkDisplay = "display"
	SinkView    = "view"
	SinkOutputs = "report_outputs"
)

// IsSink reports whether name is a sink parameter.
func IsSink(name string) bool {
	return name == SinkDisplay || name == SinkView || name == SinkOutputs
}

// Body is the synthesized callable unit of a cell.
type Body struct {
	// Source is the arrow function source.
	Source string

	// Params are the function parameters in order.
	Params []string

	// Inputs are the parameters resolved by name against the graph.
	Inputs []string

	// Outputs are the names reported and returned by the unit.
	Outputs []string

	// Async is true when the unit is an async function.
	Async bool

	// Display is true when an implicit display of the expression was injected.
	Display bool

	// Map records the rewrites over the analyzed code.
	Map *Sourcemap
}

// Synthesize builds the callable unit for an analyzed cell.
func Synthesize(res *analyzer.Result) *Body {
	refs := dedupe(res.References)
	outputs := dedupe(res.Declarations)

	body := &Body{
		Outputs: outputs,
		Async:   res.Async,
		Display: res.Expression && !contains(refs, SinkDisplay) && !contains(refs, SinkView),
	}

	params := append([]string{}, refs...)
	if body.Display {
		params = append(params, SinkDisplay)
		body.Async = true
	}
	if len(outputs) > 0 && !contains(params, SinkOutputs) {
		params = append(params, SinkOutputs)
	}
	if len(res.Imports) > 0 {
		body.Async = true
	}
	body.Params = params

	body.Inputs = []string{}
	for _, p := range params {
		if !IsSink(p) {
			body.Inputs = append(body.Inputs, p)
		}
	}

	n := len(res.Code)
	sm := NewSourcemap(res.Code)
	for _, imp := range res.Imports {
		sm.Replace(imp.Start, imp.End, rewriteImport(imp))
	}
	if body.Display {
		sm.InsertLeft(0, "display(await(\n").InsertRight(n, "\n))")
	}

	head := "(" + strings.Join(params, ",") + ") => {\n"
	if body.Async {
		head = "async " + head
	}
	sm.InsertLeft(0, head)

	if len(outputs) > 0 {
		record := "{" + strings.Join(outputs, ",") + "}"
		sm.InsertRight(n, "\n"+SinkOutputs+"("+record+");")
		sm.InsertRight(n, "\nreturn "+record+";")
	}
	sm.InsertRight(n, "\n}\n")

	body.Map = sm
	body.Source = sm.String()
	return body
}

// rewriteImport turns a static import into a destructured dynamic import.
// The rewrite stays on one line so line numbers are preserved.
func rewriteImport(imp analyzer.Import) string {
	src := strconv.Quote(imp.Source)

	if imp.Namespace != "" {
		out := "const " + imp.Namespace + " = await import(" + src + ")"
		if imp.Default != "" {
			out += ", {default: " + imp.Default + "} = " + imp.Namespace
		}
		return out + ";"
	}

	var fields []string
	if imp.Default != "" {
		fields = append(fields, "default: "+imp.Default)
	}
	for _, name := range imp.Names {
		switch {
		case name.Imported == name.Local:
			fields = append(fields, name.Local)
		case isIdentifier(name.Imported):
			fields = append(fields, name.Imported+": "+name.Local)
		default:
			fields = append(fields, strconv.Quote(name.Imported)+": "+name.Local)
		}
	}
	if len(fields) == 0 {
		return "await import(" + src + ");"
	}
	return "const {" + strings.Join(fields, ", ") + "} = await import(" + src + ");"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 0x7f
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func dedupe(names []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
