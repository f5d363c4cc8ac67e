package interp

// PromiseState is the settlement state of a Promise.
type PromiseState int

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

// Promise is a JavaScript promise. Reactions run as microtasks on the
// interpreter's Scheduler.
type Promise struct {
	Object
	state     PromiseState
	result    Value
	handled   bool
	reactions []reaction
	in        *Interp
}

type reaction struct {
	fulfilled func(Value)
	rejected  func(Value)
}

// State returns the settlement state.
func (p *Promise) State() PromiseState { return p.state }

// Result returns the fulfillment value or rejection reason, nil while
// pending.
func (p *Promise) Result() Value { return p.result }

func (in *Interp) newPromise() *Promise {
	p := &Promise{in: in}
	p.Object = Object{Class: "Promise", proto: in.promiseProto}
	p.outer = p
	return p
}

func (p *Promise) settle(state PromiseState, v Value) {
	if p.state != Pending {
		return
	}
	p.state, p.result = state, v
	rs := p.reactions
	p.reactions = nil
	for _, r := range rs {
		p.schedule(r)
	}
}

func (p *Promise) schedule(r reaction) {
	state, v := p.state, p.result
	p.in.sched.EnqueueMicrotask(func() {
		if state == Fulfilled {
			r.fulfilled(v)
		} else {
			r.rejected(v)
		}
	})
}

func (p *Promise) addReaction(r reaction) {
	p.handled = true
	if p.state == Pending {
		p.reactions = append(p.reactions, r)
		return
	}
	p.schedule(r)
}

// resolvers returns the resolve and reject functions of p. Only the first
// call of either has an effect.
func (in *Interp) resolvers(p *Promise) (resolve, reject func(Value)) {
	done := false
	resolve = func(v Value) {
		if done {
			return
		}
		done = true
		in.resolveValue(p, v)
	}
	reject = func(v Value) {
		if done {
			return
		}
		done = true
		p.settle(Rejected, v)
	}
	return resolve, reject
}

// resolveValue runs the promise resolution procedure.
func (in *Interp) resolveValue(p *Promise, v Value) {
	switch x := v.(type) {
	case *Promise:
		if x == p {
			p.settle(Rejected, in.newError("TypeError", "Chaining cycle detected for promise #<Promise>"))
			return
		}
		in.sched.EnqueueMicrotask(func() {
			x.addReaction(reaction{
				fulfilled: func(r Value) { p.settle(Fulfilled, r) },
				rejected:  func(r Value) { p.settle(Rejected, r) },
			})
		})
		return
	case objectLike:
		then, exc := in.guard(func() Value { return in.getMember(x, "then") })
		if exc != nil {
			p.settle(Rejected, exc.Value)
			return
		}
		fn, ok := then.(*Function)
		if !ok {
			break
		}
		in.sched.EnqueueMicrotask(func() {
			resolve, reject := in.resolvers(p)
			args := []Value{
				in.nativeFunc("", 1, func(_ *Interp, _ Value, a []Value) Value { resolve(arg(a, 0)); return Undefined }),
				in.nativeFunc("", 1, func(_ *Interp, _ Value, a []Value) Value { reject(arg(a, 0)); return Undefined }),
			}
			if _, exc := in.tryCall(fn, x, args); exc != nil {
				reject(exc.Value)
			}
		})
		return
	}
	p.settle(Fulfilled, v)
}

// guard runs fn, catching what it throws.
func (in *Interp) guard(fn func() Value) (result Value, exc *Exception) {
	depth := in.depth
	defer func() {
		if r := recover(); r != nil {
			rethrowAbort(r)
			in.depth = depth
			result, exc = nil, in.recovered(r)
		}
	}()
	return fn(), nil
}

// NewPromise returns a pending promise with its resolve and reject
// functions.
func (in *Interp) NewPromise() (p *Promise, resolve, reject func(Value)) {
	p = in.newPromise()
	resolve, reject = in.resolvers(p)
	return p, resolve, reject
}

// Resolve returns v if it is a promise, else a promise resolved with v.
func (in *Interp) Resolve(v Value) *Promise {
	if p, ok := v.(*Promise); ok {
		return p
	}
	p, resolve, _ := in.NewPromise()
	resolve(v)
	return p
}

// Reject returns a promise rejected with v.
func (in *Interp) Reject(v Value) *Promise {
	p := in.newPromise()
	p.settle(Rejected, v)
	return p
}

// then chains handlers onto p. A nil handler passes the settlement through.
func (in *Interp) then(p *Promise, onFulfilled, onRejected func(Value) Value) *Promise {
	out, resolve, reject := in.NewPromise()
	p.addReaction(reaction{
		fulfilled: func(v Value) {
			if onFulfilled == nil {
				resolve(v)
				return
			}
			in.react(onFulfilled, v, resolve, reject)
		},
		rejected: func(v Value) {
			if onRejected == nil {
				reject(v)
				return
			}
			in.react(onRejected, v, resolve, reject)
		},
	})
	return out
}

func (in *Interp) react(h func(Value) Value, v Value, resolve, reject func(Value)) {
	r, exc := in.guard(func() Value { return h(v) })
	if exc != nil {
		reject(exc.Value)
		return
	}
	resolve(r)
}

// Then registers Go handlers on p. An error returned by a handler rejects
// the derived promise with ErrorValue(err).
func (p *Promise) Then(onFulfilled, onRejected func(Value) (Value, error)) *Promise {
	in := p.in
	wrap := func(h func(Value) (Value, error)) func(Value) Value {
		if h == nil {
			return nil
		}
		return func(v Value) Value {
			r, err := h(v)
			if err != nil {
				panic(in.exception(in.ErrorValue(err)))
			}
			return norm(r)
		}
	}
	return in.then(p, wrap(onFulfilled), wrap(onRejected))
}

// All resolves to an array of the settled values, or rejects with the
// first rejection.
func (in *Interp) All(values []Value) *Promise {
	out, resolve, reject := in.NewPromise()
	results := make([]Value, len(values))
	remaining := len(values)
	if remaining == 0 {
		resolve(in.newArray(results))
		return out
	}
	for i, v := range values {
		in.Resolve(v).addReaction(reaction{
			fulfilled: func(r Value) {
				results[i] = r
				remaining--
				if remaining == 0 {
					resolve(in.newArray(results))
				}
			},
			rejected: reject,
		})
	}
	return out
}

// coroutine runs the body of an async function on its own goroutine. Only
// one of the coroutine and its driver runs at any time; control passes
// through the two channels.
type coroutine struct {
	resume chan resumeMsg
	yield  chan yieldMsg
	base   int // interpreter depth when the body was last resumed
	depth  int // depth the body had accumulated when it suspended
	dead   bool
}

type resumeMsg struct {
	value  Value
	thrown bool
	abort  bool
}

type yieldMsg struct {
	awaited Value
	done    bool
	thrown  bool
	value   Value
}

func (in *Interp) startAsync(fr *frame, body func() Value) *Promise {
	p, resolve, reject := in.NewPromise()
	co := &coroutine{resume: make(chan resumeMsg), yield: make(chan yieldMsg)}
	fr.co = co
	go in.coroutineMain(co, body)
	in.step(co, resolve, reject, resumeMsg{})
	return p
}

func (in *Interp) coroutineMain(co *coroutine, body func() Value) {
	<-co.resume
	co.base = in.depth
	var out yieldMsg
	aborted := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abortSignal); ok {
					aborted = true
					return
				}
				out = yieldMsg{done: true, thrown: true, value: in.recovered(r).Value}
			}
		}()
		in.enter()
		v := body()
		out = yieldMsg{done: true, value: v}
	}()
	if aborted {
		return
	}
	in.depth = co.base
	co.yield <- out
}

// step resumes co with msg and waits for it to finish or suspend.
func (in *Interp) step(co *coroutine, resolve, reject func(Value), msg resumeMsg) {
	if co.dead {
		return
	}
	in.live[co] = struct{}{}
	pos := in.pos
	co.resume <- msg
	y := <-co.yield
	in.pos = pos
	if y.done {
		delete(in.live, co)
		if y.thrown {
			reject(y.value)
		} else {
			resolve(y.value)
		}
		return
	}
	in.Resolve(y.awaited).addReaction(reaction{
		fulfilled: func(v Value) { in.step(co, resolve, reject, resumeMsg{value: v}) },
		rejected:  func(v Value) { in.step(co, resolve, reject, resumeMsg{value: v, thrown: true}) },
	})
}

// await suspends the coroutine running fr until v settles.
func (in *Interp) await(fr *frame, v Value) Value {
	co := fr.co
	if co == nil {
		panic(in.throwError("SyntaxError", "await is only valid in async functions"))
	}
	pos := in.pos
	co.depth = in.depth - co.base
	in.depth = co.base
	co.yield <- yieldMsg{awaited: v}
	msg := <-co.resume
	if msg.abort {
		panic(abortSignal{})
	}
	co.base = in.depth
	in.depth += co.depth
	in.pos = pos
	if msg.thrown {
		panic(in.exception(msg.value))
	}
	return msg.value
}

// dynamicImport loads a configured module as a namespace object.
func (in *Interp) dynamicImport(name string) Value {
	if ns, ok := in.namespaces[name]; ok {
		return in.Resolve(ns)
	}
	m, ok := in.modules[name]
	if !ok {
		return in.Reject(in.newError("Error", "Cannot find module '"+name+"'"))
	}
	ns := newObject(nil)
	ns.Class = "Module"
	if o, ok := m.(*Object); ok && o.Class == "Object" {
		for _, k := range o.Keys() {
			ns.Set(k, o.Get(k))
		}
		if _, ok := o.own("default"); !ok {
			ns.Set("default", o)
		}
	} else {
		ns.Set("default", m)
	}
	ns.frozen = true
	in.namespaces[name] = ns
	return in.Resolve(ns)
}
