package interp

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"
)

// DefaultMaxDepth bounds the JavaScript call depth.
const DefaultMaxDepth = 2000

// Scheduler queues the work promises and timers produce. The graph loop
// implements it; Queue is a standalone implementation.
type Scheduler interface {
	EnqueueMicrotask(fn func())
	SetTimer(delay time.Duration, fn func()) int
	ClearTimer(id int)
}

// Interp compiles and runs JavaScript.
type Interp struct {
	logger   *slog.Logger
	sched    Scheduler
	console  io.Writer
	now      func() time.Time
	maxDepth int

	modules    map[string]Value
	namespaces map[string]*Object

	global        *scope
	globalObj     *Object
	objectProto   *Object
	functionProto *Object
	arrayProto    *Object
	stringProto   *Object
	numberProto   *Object
	booleanProto  *Object
	promiseProto  *Object
	errorProto    *Object
	mapProto      *Object
	setProto      *Object
	dateProto     *Object
	errorProtos   map[string]*Object

	pos         position
	depth       int
	live        map[*coroutine]struct{}
	timers      map[int]int
	nextTimer   int
	joining     map[*Array]bool
	interrupted atomic.Bool
}

// Option configures an Interp.
type Option func(*Interp)

// WithScheduler sets where microtasks and timers are queued.
func WithScheduler(s Scheduler) Option {
	return func(in *Interp) { in.sched = s }
}

// WithLogger sets the logger for uncaught errors in timers and microtasks.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interp) { in.logger = l }
}

// WithConsole sets where console output is written.
func WithConsole(w io.Writer) Option {
	return func(in *Interp) { in.console = w }
}

// WithClock sets the time source of Date.
func WithClock(now func() time.Time) Option {
	return func(in *Interp) { in.now = now }
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(in *Interp) { in.maxDepth = n }
}

// WithModules registers the modules dynamic import can load. Values are
// converted with FromGo.
func WithModules(modules map[string]any) Option {
	return func(in *Interp) {
		for name, m := range modules {
			in.modules[name] = m
		}
	}
}

// New returns an interpreter with the standard globals installed.
func New(opts ...Option) *Interp {
	in := &Interp{
		logger:     slog.Default(),
		console:    io.Discard,
		now:        time.Now,
		maxDepth:   DefaultMaxDepth,
		modules:    make(map[string]Value),
		namespaces: make(map[string]*Object),
		live:       make(map[*coroutine]struct{}),
		timers:     make(map[int]int),
		pos:        position{off: -1},
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.sched == nil {
		in.sched = NewQueue()
	}
	in.installGlobals()
	for name, m := range in.modules {
		in.modules[name] = in.FromGo(m)
	}
	return in
}

// Scheduler returns the scheduler promise reactions are queued on.
func (in *Interp) Scheduler() Scheduler { return in.sched }

// Compile compiles source consisting of a single function expression and
// returns the function. name identifies the source in exceptions.
func (in *Interp) Compile(ctx context.Context, name, source string) (*Function, error) {
	u, err := in.compile(ctx, name, source, true)
	if err != nil {
		return nil, err
	}
	v, err := in.runUnit(u)
	if err != nil {
		return nil, err
	}
	f, ok := v.(*Function)
	if !ok {
		return nil, &CompileError{Message: "source is not a function expression", Offset: 0}
	}
	return f, nil
}

// Eval runs source as a script and returns the value of its last
// expression statement.
func (in *Interp) Eval(ctx context.Context, name, source string) (Value, error) {
	u, err := in.compile(ctx, name, source, false)
	if err != nil {
		return nil, err
	}
	return in.runUnit(u)
}

func (in *Interp) runUnit(u *unit) (result Value, err error) {
	depth := in.depth
	defer func() {
		if r := recover(); r != nil {
			in.depth = depth
			result, err = nil, in.recovered(r)
		}
	}()
	return u.run(in.global), nil
}

// Call calls fn with this and args, returning any uncaught exception as an
// *Exception.
func (in *Interp) Call(fn Value, this Value, args ...Value) (Value, error) {
	v, exc := in.tryCall(fn, this, args)
	if exc != nil {
		return nil, exc
	}
	return v, nil
}

func (in *Interp) tryCall(fn Value, this Value, args []Value) (result Value, exc *Exception) {
	depth := in.depth
	defer func() {
		if r := recover(); r != nil {
			rethrowAbort(r)
			in.depth = depth
			result, exc = nil, in.recovered(r)
		}
	}()
	return in.call(fn, this, args), nil
}

// Get reads a property of v.
func (in *Interp) Get(v Value, key string) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rethrowAbort(r)
			result, err = nil, in.recovered(r)
		}
	}()
	return in.getMember(v, key), nil
}

// NewFunction wraps a Go function as a JavaScript function.
func (in *Interp) NewFunction(name string, length int, fn NativeFunc) *Function {
	return in.nativeFunc(name, length, fn)
}

// NewObject returns an empty plain object.
func (in *Interp) NewObject() *Object {
	return newObject(in.objectProto)
}

// NewArray returns an array holding elems.
func (in *Interp) NewArray(elems []Value) *Array {
	return in.newArray(elems)
}

// Throw returns a panic value that throws a JavaScript error of the given
// kind from a native function.
func (in *Interp) Throw(kind, format string, args ...any) *Exception {
	return in.throwError(kind, format, args...)
}

// Interrupt makes running loops and calls throw. It is safe to call from
// any goroutine and stays in effect.
func (in *Interp) Interrupt() {
	in.interrupted.Store(true)
}

// Shutdown abandons every suspended async function; their promises never
// settle. Call it from the goroutine that drives the interpreter.
func (in *Interp) Shutdown() {
	for co := range in.live {
		co.dead = true
		co.resume <- resumeMsg{abort: true}
	}
	clear(in.live)
}

func (in *Interp) checkInterrupt() {
	if in.interrupted.Load() {
		panic(in.throwError("Error", "execution interrupted"))
	}
}

func (in *Interp) enter() {
	in.checkInterrupt()
	in.depth++
	if in.depth > in.maxDepth {
		panic(in.rangeError("Maximum call stack size exceeded"))
	}
}

func (in *Interp) call(fv Value, this Value, args []Value) Value {
	fn, ok := fv.(*Function)
	if !ok {
		panic(in.typeError("%s is not a function", describeShort(fv)))
	}
	return in.invoke(fn, this, args)
}

func (in *Interp) invoke(fn *Function, this Value, args []Value) Value {
	if fn.native != nil {
		in.checkInterrupt()
		return norm(fn.native(in, this, args))
	}
	if fn.class {
		panic(in.typeError("Class constructor %s cannot be invoked without 'new'", fn.name))
	}
	return fn.call(this, args, nil)
}

func (in *Interp) construct(fv Value, args []Value, newTarget *Function) Value {
	fn, ok := fv.(*Function)
	if !ok || !fn.construct {
		panic(in.typeError("%s is not a constructor", describeShort(fv)))
	}
	if newTarget == nil {
		newTarget = fn
	}
	if fn.ctor != nil {
		return fn.ctor(in, args, newTarget)
	}
	if fn.derived {
		return fn.call(nil, args, newTarget)
	}
	obj := newObject(in.protoFrom(newTarget, in.objectProto))
	if fn.fields != nil {
		fn.fields(obj)
	}
	if r := fn.call(obj, args, newTarget); isObject(r) {
		return r
	}
	return obj
}

func (in *Interp) protoFrom(newTarget *Function, fallback *Object) *Object {
	if newTarget != nil {
		if p, ok := newTarget.Get("prototype").(objectLike); ok {
			return p.base()
		}
	}
	return fallback
}

func (in *Interp) callable(v Value, what string) *Function {
	f, ok := v.(*Function)
	if !ok {
		panic(in.typeError("%s is not a function", what))
	}
	return f
}

// runDetached runs fn outside any script, logging what it throws.
func (in *Interp) runDetached(what string, fn Value, args []Value) {
	if _, exc := in.tryCall(fn, Undefined, args); exc != nil {
		in.logger.Warn("uncaught exception", slog.String("in", what), slog.String("error", exc.Error()))
	}
}

// Queue is a Scheduler that runs work only when drained. Timers fire in
// deadline order without waiting for the wall clock.
type Queue struct {
	micro  []func()
	timers []queuedTimer
	nextID int
	now    time.Duration
}

type queuedTimer struct {
	id int
	at time.Duration
	fn func()
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// EnqueueMicrotask implements Scheduler.
func (q *Queue) EnqueueMicrotask(fn func()) {
	q.micro = append(q.micro, fn)
}

// SetTimer implements Scheduler.
func (q *Queue) SetTimer(delay time.Duration, fn func()) int {
	q.nextID++
	q.timers = append(q.timers, queuedTimer{id: q.nextID, at: q.now + delay, fn: fn})
	return q.nextID
}

// ClearTimer implements Scheduler.
func (q *Queue) ClearTimer(id int) {
	q.timers = slices.DeleteFunc(q.timers, func(t queuedTimer) bool { return t.id == id })
}

// Drain runs microtasks and timers until none remain.
func (q *Queue) Drain() {
	for {
		for len(q.micro) > 0 {
			fn := q.micro[0]
			q.micro = q.micro[1:]
			fn()
		}
		if len(q.timers) == 0 {
			return
		}
		next := 0
		for i, t := range q.timers {
			if t.at < q.timers[next].at {
				next = i
			}
		}
		t := q.timers[next]
		q.timers = slices.Delete(q.timers, next, next+1)
		q.now = t.at
		t.fn()
	}
}
