package graph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/noticeable/internal/interp"
)

// Observer receives the settlement of a variable's computations.
// Callbacks run on the loop.
type Observer interface {
	Pending()
	Fulfilled(value interp.Value)
	Rejected(err error)
}

// Definition computes a variable from its resolved inputs. version
// identifies this computation; it increases each time the variable
// recomputes. The result may be a promise.
type Definition func(version int, inputs []interp.Value) (interp.Value, error)

// Runtime owns the variables of one notebook.
//
// CRITICAL: Runtime is not safe for concurrent use. Call it from a loop
// task or inside Loop.Exclusive.
type Runtime struct {
	in       *interp.Interp
	builtins map[string]interp.Value
	logger   *slog.Logger

	vars      []*Variable // live variables in creation order
	dirty     map[*Variable]bool
	scheduled bool
	nextID    int
	computed  int64
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithBuiltins sets the values inputs fall back to when no variable has
// their name.
func WithBuiltins(builtins map[string]interp.Value) RuntimeOption {
	return func(r *Runtime) {
		r.builtins = builtins
	}
}

// WithRuntimeLogger sets the runtime logger.
func WithRuntimeLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates an empty graph evaluated by in. Recompute runs as a
// microtask on in's scheduler.
func NewRuntime(in *interp.Interp, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		in:       in,
		builtins: map[string]interp.Value{},
		logger:   slog.Default(),
		dirty:    make(map[*Variable]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Variable creates an undefined variable. obs may be nil.
func (r *Runtime) Variable(obs Observer) *Variable {
	r.nextID++
	v := &Variable{rt: r, obs: obs, id: r.nextID}
	r.vars = append(r.vars, v)
	return v
}

// Len returns the number of live variables.
func (r *Runtime) Len() int {
	return len(r.vars)
}

// Computed returns how many computations have started.
func (r *Runtime) Computed() int64 {
	return r.computed
}

// Variable is one node of the graph.
type Variable struct {
	rt  *Runtime
	obs Observer
	id  int

	name    string
	inputs  []string
	def     Definition
	defined bool
	deleted bool

	version int
	promise *interp.Promise
}

// Define sets the variable's name, inputs and definition and schedules it,
// and everything reading its old or new name, to recompute. An empty name
// makes the variable anonymous.
func (v *Variable) Define(name string, inputs []string, def Definition) *Variable {
	if v.deleted {
		v.rt.logger.Warn("define on deleted variable ignored", "variable", name)
		return v
	}
	old := v.name
	v.name = name
	v.inputs = slices.Clone(inputs)
	v.def = def
	v.defined = true
	v.rt.invalidate(v, old, name)
	return v
}

// Delete removes the variable. Pending computations never notify, and
// readers of its name recompute.
func (v *Variable) Delete() {
	if v.deleted {
		return
	}
	r := v.rt
	v.deleted = true
	v.version++
	r.vars = slices.DeleteFunc(r.vars, func(w *Variable) bool { return w == v })
	delete(r.dirty, v)
	r.invalidate(nil, v.name)
}

// Name returns the variable name, empty if anonymous.
func (v *Variable) Name() string { return v.name }

// Version returns the version of the latest computation, 0 before the
// first.
func (v *Variable) Version() int { return v.version }

// Deleted reports whether Delete was called.
func (v *Variable) Deleted() bool { return v.deleted }

// Promise returns the promise of the latest computation, nil before the
// first.
func (v *Variable) Promise() *interp.Promise { return v.promise }

func (v *Variable) label() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("#%d", v.id)
}

func (v *Variable) current(version int) bool {
	return !v.deleted && v.version == version
}

// invalidate marks v, every variable named by names and every transitive
// reader of those names dirty, then schedules one recompute.
func (r *Runtime) invalidate(v *Variable, names ...string) {
	if v != nil {
		r.markDirty(v)
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		for _, w := range r.vars {
			if w.defined && (w.name == name || slices.Contains(w.inputs, name)) {
				r.markDirty(w)
			}
		}
	}
	if len(r.dirty) > 0 && !r.scheduled {
		r.scheduled = true
		r.in.Scheduler().EnqueueMicrotask(r.recompute)
	}
}

func (r *Runtime) markDirty(v *Variable) {
	if r.dirty[v] {
		return
	}
	r.dirty[v] = true
	if v.name == "" {
		return
	}
	for _, w := range r.vars {
		if w.defined && slices.Contains(w.inputs, v.name) {
			r.markDirty(w)
		}
	}
}

// producers returns the live variables defining name.
func (r *Runtime) producers(name string) []*Variable {
	var out []*Variable
	for _, v := range r.vars {
		if v.defined && v.name == name {
			out = append(out, v)
		}
	}
	return out
}

// edges builds producer to reader edges over the live variables.
func (r *Runtime) edges() (edges, []*Variable) {
	out := make(edges)
	var nodes []*Variable
	for _, w := range r.vars {
		if !w.defined {
			continue
		}
		nodes = append(nodes, w)
		for _, name := range w.inputs {
			for _, p := range r.producers(name) {
				out[p] = append(out[p], w)
			}
		}
	}
	return out, nodes
}

func (r *Runtime) recompute() {
	r.scheduled = false

	var dirty []*Variable
	for _, v := range r.vars {
		if r.dirty[v] && v.defined {
			dirty = append(dirty, v)
		}
	}
	clear(r.dirty)
	if len(dirty) == 0 {
		return
	}

	out, nodes := r.edges()
	cyclic := circular(nodes, out)

	// Variables on a cycle settle first so readers outside the cycle
	// chain on their rejection.
	var rest []*Variable
	for _, v := range dirty {
		if cyclic[v] {
			r.compute(v, NewCircularDefinition(v.label()))
			continue
		}
		rest = append(rest, v)
	}
	for _, v := range topoOrder(rest, out) {
		r.compute(v, nil)
	}
}

// compute starts a new computation of v. A non-nil fail rejects it
// without running the definition.
func (r *Runtime) compute(v *Variable, fail error) {
	in := r.in
	v.version++
	version := v.version
	r.computed++

	if v.obs != nil {
		v.obs.Pending()
	}

	if fail == nil && v.name != "" && len(r.producers(v.name)) > 1 {
		fail = NewDuplicateDefinition(v.name)
	}

	var p *interp.Promise
	if fail != nil {
		p = in.Reject(in.ErrorValue(fail))
	} else {
		args := make([]interp.Value, len(v.inputs))
		for i, name := range v.inputs {
			args[i] = r.resolve(name)
		}
		def := v.def
		p = in.All(args).Then(func(x interp.Value) (interp.Value, error) {
			var resolved []interp.Value
			if arr, ok := x.(*interp.Array); ok {
				resolved = arr.Elems
			}
			return def(version, resolved)
		}, nil)
	}
	v.promise = p

	p.Then(
		func(value interp.Value) (interp.Value, error) {
			if v.current(version) && v.obs != nil {
				v.obs.Fulfilled(value)
			}
			return nil, nil
		},
		func(reason interp.Value) (interp.Value, error) {
			if v.current(version) && v.obs != nil {
				v.obs.Rejected(interp.AsError(reason))
			}
			return nil, nil
		},
	)
}

// resolve returns the value an input name stands for: a variable's
// promise, a builtin, or a rejected promise.
func (r *Runtime) resolve(name string) interp.Value {
	in := r.in
	switch ps := r.producers(name); len(ps) {
	case 0:
	case 1:
		if ps[0].promise != nil {
			return ps[0].promise
		}
		r.logger.Error("input read before its producer computed", "input", name)
		return in.Reject(in.ErrorValue(NewUndefinedReference(name)))
	default:
		return in.Reject(in.ErrorValue(NewDuplicateDefinition(name)))
	}
	if v, ok := r.builtins[name]; ok {
		return v
	}
	return in.Reject(in.ErrorValue(NewUndefinedReference(name)))
}
