package notebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/noticeable/internal/analyzer"
	"github.com/roach88/noticeable/internal/cells"
	"github.com/roach88/noticeable/internal/graph"
	"github.com/roach88/noticeable/internal/interp"
	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/synth"
)

// prepared is the outcome of analyzing one added cell.
type prepared struct {
	cell       ir.Cell
	isMarkdown bool
	markdown   string
	result     *analyzer.Result
	body       *synth.Body
	err        error
}

// cellRuntime is the live state of one cell id.
type cellRuntime struct {
	cell   ir.Cell
	result *analyzer.Result
	body   *synth.Body
	vars   []*graph.Variable
	state  ir.CellState

	displays versionGuard
	outputs  versionGuard
}

// versionGuard admits sink calls from the newest computation only.
type versionGuard struct {
	seen int // highest version admitted
}

// admit reports whether a call from version is current, and whether it is
// the first call of a newer version (so accumulated values reset).
func (g *versionGuard) admit(version int) (ok, reset bool) {
	switch {
	case version < g.seen:
		return false, false
	case version > g.seen:
		g.seen = version
		return true, true
	}
	return true, false
}

// lineBase returns the 0-based document line before the first line of
// the analyzed code.
func (cr *cellRuntime) lineBase() int {
	code := cr.cell.Code
	lead := len(code) - len(strings.TrimLeftFunc(code, unicode.IsSpace))
	return cr.cell.FirstLineNum + strings.Count(code[:lead], "\n")
}

// prepareAll analyzes and synthesizes cells concurrently. One failure
// never cancels the others; each outcome is kept per cell.
func (c *Controller) prepareAll(ctx context.Context, added []ir.Cell) []*prepared {
	out := make([]*prepared, len(added))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.AnalysisConcurrency)
	for i, cell := range added {
		g.Go(func() error {
			out[i] = c.prepare(gctx, cell)
			return nil
		})
	}
	_ = g.Wait() // every goroutine returns nil

	return out
}

func (c *Controller) prepare(ctx context.Context, cell ir.Cell) (p *prepared) {
	start := time.Now()
	p = &prepared{cell: cell}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cell analysis panicked", "cell", cell.ID, "panic", r)
			p.err = fmt.Errorf("analyze cell: %v", r)
		}
		outcome := "ok"
		switch {
		case p.err != nil:
			outcome = "error"
		case p.isMarkdown:
			outcome = "markdown"
		}
		c.metrics.analysisDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if md, ok := cells.Markdown(cell.Code, c.cfg.CommentPrefix); ok {
		p.isMarkdown, p.markdown = true, md
		return p
	}

	res, err := c.analyzer.Analyze(ctx, cell.Code)
	if err != nil {
		p.err = err
		return p
	}
	p.result = res
	p.body = synth.Synthesize(res)
	return p
}

// define installs an added cell. Any failure becomes the cell's Rejected
// state.
func (c *Controller) define(p *prepared) {
	id := p.cell.ID
	cr := &cellRuntime{cell: p.cell, result: p.result, body: p.body}
	c.cells[id] = cr
	c.issued[id] = true

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cell definition panicked", "cell", id, "panic", r)
			for _, v := range cr.vars {
				v.Delete()
			}
			cr.vars = nil
			cr.state = ir.CellState{Kind: ir.KindCode, Variable: ir.Rejected(fmt.Errorf("define cell: %v", r))}
			c.changed(cr)
		}
	}()

	switch {
	case p.isMarkdown:
		cr.state = ir.CellState{Kind: ir.KindMarkdown, Markdown: p.markdown}
	case p.err != nil:
		cr.state = ir.CellState{Kind: ir.KindCode, Variable: c.rejection(cr, p.err)}
	default:
		cr.state = ir.CellState{Kind: ir.KindCode, Variable: ir.Pending(), Transpiled: p.body.Source}
		if err := c.defineVariables(cr); err != nil {
			cr.state.Variable = c.rejection(cr, err)
		}
	}
	c.changed(cr)
}

// defineVariables creates the main variable of a code cell and one
// variable per output name reading it.
func (c *Controller) defineVariables(cr *cellRuntime) error {
	id := cr.cell.ID
	fn, err := c.in.Compile(context.Background(), id, cr.body.Source)
	if err != nil {
		return err
	}

	name := ""
	if len(cr.body.Outputs) > 0 {
		name = "cell " + id
	}
	main := c.rt.Variable(&observer{c: c, cr: cr}).Define(name, cr.body.Inputs, c.definition(cr, fn))
	cr.vars = append(cr.vars, main)

	for _, out := range cr.body.Outputs {
		v := c.rt.Variable(nil).Define(out, []string{name}, func(_ int, inputs []interp.Value) (interp.Value, error) {
			return c.in.Get(inputs[0], out)
		})
		cr.vars = append(cr.vars, v)
	}
	return nil
}

// definition calls the compiled cell function with graph inputs and sinks
// bound to the computation's version, in parameter order.
func (c *Controller) definition(cr *cellRuntime, fn *interp.Function) graph.Definition {
	params := cr.body.Params
	return func(version int, inputs []interp.Value) (interp.Value, error) {
		args := make([]interp.Value, 0, len(params))
		next := 0
		for _, p := range params {
			if synth.IsSink(p) {
				args = append(args, c.sink(cr, p, version))
				continue
			}
			args = append(args, inputs[next])
			next++
		}
		return c.in.Call(fn, interp.Undefined, args...)
	}
}

func (c *Controller) sink(cr *cellRuntime, name string, version int) *interp.Function {
	if name == synth.SinkOutputs {
		return c.in.NewFunction(name, 1, func(_ *interp.Interp, _ interp.Value, args []interp.Value) interp.Value {
			v := firstArg(args)
			c.reportOutputs(cr, version, v)
			return v
		})
	}
	// display and view both show their argument and return it.
	return c.in.NewFunction(name, 1, func(_ *interp.Interp, _ interp.Value, args []interp.Value) interp.Value {
		v := firstArg(args)
		c.display(cr, version, v)
		return v
	})
}

func firstArg(args []interp.Value) interp.Value {
	if len(args) == 0 {
		return interp.Undefined
	}
	return args[0]
}

func (c *Controller) display(cr *cellRuntime, version int, v interp.Value) {
	if !c.live(cr, "display") {
		return
	}
	ok, reset := cr.displays.admit(version)
	if !ok {
		c.stale(cr, synth.SinkDisplay, version, cr.displays.seen)
		return
	}
	if reset {
		cr.state.Displays = nil
	}
	cr.state.Displays = append(cr.state.Displays, interp.Export(v))
	c.touch()
}

func (c *Controller) reportOutputs(cr *cellRuntime, version int, v interp.Value) {
	if !c.live(cr, synth.SinkOutputs) {
		return
	}
	ok, reset := cr.outputs.admit(version)
	if !ok {
		c.stale(cr, synth.SinkOutputs, version, cr.outputs.seen)
		return
	}
	rec, isRecord := interp.Export(v).(*interp.Record)
	if !isRecord {
		c.logger.Warn("report_outputs called without an object", "cell", cr.cell.ID)
		return
	}
	if reset {
		cr.state.Outputs = nil
	}
	for i, name := range rec.Keys {
		setOutput(&cr.state, name, rec.Values[i])

		// Promise outputs show their settled value once it arrives.
		raw, err := c.in.Get(v, name)
		if p, isPromise := raw.(*interp.Promise); err == nil && isPromise {
			p.Then(func(value interp.Value) (interp.Value, error) {
				if c.live(cr, synth.SinkOutputs) && cr.outputs.seen == version {
					setOutput(&cr.state, name, interp.Export(value))
					c.touch()
				}
				return nil, nil
			}, nil)
		}
	}
	c.touch()
}

func setOutput(st *ir.CellState, name string, value any) {
	for i := range st.Outputs {
		if st.Outputs[i].Name == name {
			st.Outputs[i].Value = value
			return
		}
	}
	st.Outputs = append(st.Outputs, ir.NamedValue{Name: name, Value: value})
}

func (c *Controller) stale(cr *cellRuntime, sink string, version, current int) {
	c.metrics.staleCalls.WithLabelValues(sink).Inc()
	c.logger.Debug("stale sink call discarded",
		"cell", cr.cell.ID,
		"sink", sink,
		"version", version,
		"current", current)
}

// live reports whether cr is still the installed runtime of its id.
// Calls for a removed cell are expected; calls for an id never issued
// are a bug.
func (c *Controller) live(cr *cellRuntime, what string) bool {
	id := cr.cell.ID
	if cur, ok := c.cells[id]; ok && cur == cr {
		return true
	}
	if c.issued[id] {
		c.metrics.lateNotifications.Inc()
		c.logger.Debug("late notification for removed cell ignored", "cell", id, "from", what)
	} else {
		c.logger.Error("notification for unknown cell", "cell", id, "from", what)
	}
	return false
}

// remove deletes a cell's variables and drops its state.
func (c *Controller) remove(id string) {
	cr, ok := c.cells[id]
	if !ok {
		return
	}
	for _, v := range cr.vars {
		v.Delete()
	}
	delete(c.cells, id)
	c.touch()
}

// notify applies a variable notification to the cell state.
func (c *Controller) notify(cr *cellRuntime, st ir.VariableState) {
	if !c.live(cr, "variable") {
		return
	}
	if st.Kind == ir.StatePending && cr.state.Variable.Kind == ir.StatePending {
		return
	}
	cr.state.Variable = st
	c.changed(cr)
}

// changed records a state transition and publishes it.
func (c *Controller) changed(cr *cellRuntime) {
	c.recordTransition(cr)
	c.touch()
}

func (c *Controller) touch() {
	c.dirty = true
	c.publish()
}

// rejection builds a Rejected state, locating err in the document when
// it points into this cell.
func (c *Controller) rejection(cr *cellRuntime, err error) ir.VariableState {
	st := ir.Rejected(err)
	st.Line = c.errorLine(cr, err)
	return st
}

func (c *Controller) errorLine(cr *cellRuntime, err error) int {
	var se *analyzer.SyntaxError
	if errors.As(err, &se) {
		if se.Line == 0 {
			return 0
		}
		return cr.lineBase() + se.Line
	}

	off := -1
	var exc *interp.Exception
	var ce *interp.CompileError
	switch {
	case errors.As(err, &exc):
		if exc.Source == cr.cell.ID {
			off = exc.Offset
		}
	case errors.As(err, &ce):
		off = ce.Offset
	}
	if off < 0 || cr.body == nil || cr.result == nil {
		return 0
	}
	line, _ := analyzer.Position(cr.result.Code, cr.body.Map.Original(off))
	return cr.lineBase() + line
}

// observer forwards graph notifications of a cell's main variable.
type observer struct {
	c  *Controller
	cr *cellRuntime
}

func (o *observer) Pending() {
	o.c.notify(o.cr, ir.Pending())
}

func (o *observer) Fulfilled(v interp.Value) {
	o.c.notify(o.cr, ir.Fulfilled(interp.Export(v)))
}

func (o *observer) Rejected(err error) {
	o.c.notify(o.cr, o.c.rejection(o.cr, err))
}
