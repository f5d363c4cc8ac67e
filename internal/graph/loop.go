package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the single-writer scheduler of a notebook.
//
// Tasks never run concurrently: a task, and every microtask it schedules,
// runs to completion before the next macrotask or timer. Code outside the
// loop mutates state shared with tasks only inside Exclusive.
//
// Loop implements interp.Scheduler.
type Loop struct {
	mu sync.Mutex // held while a task or an Exclusive section runs

	micro *taskQueue
	macro *taskQueue
	wake  chan struct{} // timer changes; never closed

	tmu    sync.Mutex
	timers []*loopTimer
	nextID int
	offset time.Duration // virtual time advanced so far

	clock   func() time.Time
	start   time.Time
	virtual bool
	logger  *slog.Logger

	ran    atomic.Int64
	closed atomic.Bool
}

type loopTimer struct {
	id int
	at time.Time
	fn func()
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithLoopClock sets the wall clock timers are measured against.
func WithLoopClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		l.clock = now
	}
}

// WithVirtualTime makes an idle loop jump straight to the next timer
// deadline instead of sleeping. Timers still fire in deadline order.
func WithVirtualTime() LoopOption {
	return func(l *Loop) {
		l.virtual = true
	}
}

// NewLoop creates an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		micro:  newTaskQueue(),
		macro:  newTaskQueue(),
		wake:   make(chan struct{}, 1),
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.start = l.clock()
	return l
}

// Now returns the loop's current time. Under virtual time it is the start
// time plus the time skipped so far.
func (l *Loop) Now() time.Time {
	if l.virtual {
		l.tmu.Lock()
		defer l.tmu.Unlock()
		return l.start.Add(l.offset)
	}
	return l.clock()
}

// EnqueueMicrotask queues fn to run before the next macrotask.
func (l *Loop) EnqueueMicrotask(fn func()) {
	if !l.micro.Enqueue(fn) {
		l.logger.Debug("microtask dropped: loop closed")
	}
}

// Submit queues fn as a macrotask. Returns false if the loop is closed.
// Thread-safe: may be called from any goroutine.
func (l *Loop) Submit(fn func()) bool {
	return l.macro.Enqueue(fn)
}

// SetTimer runs fn once delay has elapsed and returns the timer id.
func (l *Loop) SetTimer(delay time.Duration, fn func()) int {
	at := l.Now().Add(max(delay, 0))

	l.tmu.Lock()
	l.nextID++
	id := l.nextID
	l.timers = append(l.timers, &loopTimer{id: id, at: at, fn: fn})
	l.tmu.Unlock()

	// Wake a waiting loop so it re-reads the earliest deadline.
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return id
}

// ClearTimer cancels a timer. Unknown ids are ignored.
func (l *Loop) ClearTimer(id int) {
	l.tmu.Lock()
	defer l.tmu.Unlock()
	l.timers = slices.DeleteFunc(l.timers, func(t *loopTimer) bool { return t.id == id })
}

// Pending returns the number of queued tasks and armed timers.
func (l *Loop) Pending() int {
	l.tmu.Lock()
	timers := len(l.timers)
	l.tmu.Unlock()
	return l.micro.Len() + l.macro.Len() + timers
}

// TasksRun returns the number of tasks run since the loop was created.
func (l *Loop) TasksRun() int64 {
	return l.ran.Load()
}

// Exclusive runs fn while no task runs. Microtasks fn schedules run on
// the next Settle or Run pass, never inside fn.
//
// Exclusive must not be called from a task.
func (l *Loop) Exclusive(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Settle runs tasks on the calling goroutine until no task is queued and
// no timer is armed. It returns ctx.Err() if ctx ends first.
func (l *Loop) Settle(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.closed.Load() {
			return nil
		}
		if l.runOnce(ctx) {
			continue
		}
		at, ok := l.nextDeadline()
		if !ok {
			return nil
		}
		if l.virtual {
			l.advance(at)
			continue
		}
		if err := l.wait(ctx, at, true); err != nil {
			return err
		}
	}
}

// Run drives the loop until ctx ends or the loop is closed.
//
// CRITICAL: Run and Settle serialize on the same lock, but only one
// goroutine should drive the loop at a time.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")
	for {
		if l.closed.Load() {
			l.logger.Debug("loop stopping: closed")
			return nil
		}
		if l.runOnce(ctx) {
			continue
		}
		at, ok := l.nextDeadline()
		if ok && l.virtual {
			l.advance(at)
			continue
		}
		if err := l.wait(ctx, at, ok); err != nil {
			l.logger.Debug("loop stopping: context cancelled")
			return err
		}
	}
}

// Close stops the loop. Queued tasks are dropped and later submissions
// are rejected.
func (l *Loop) Close() {
	if l.closed.Swap(true) {
		return
	}
	l.micro.Close()
	l.macro.Close()
	l.tmu.Lock()
	l.timers = nil
	l.tmu.Unlock()
}

// wait blocks until a task may be ready, the deadline passes (when
// timed), or ctx ends.
func (l *Loop) wait(ctx context.Context, at time.Time, timed bool) error {
	var fire <-chan time.Time
	if timed {
		t := time.NewTimer(max(at.Sub(l.clock()), 0))
		defer t.Stop()
		fire = t.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.micro.Wait():
	case <-l.macro.Wait():
	case <-l.wake:
	case <-fire:
	}
	return nil
}

// runOnce runs the microtask queue to empty, then one macrotask or due
// timer and the microtasks it schedules. Reports whether anything ran.
func (l *Loop) runOnce(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	worked := l.drainMicrotasks(ctx)

	fn, ok := l.macro.TryDequeue()
	if !ok {
		fn, ok = l.dueTimer()
	}
	if !ok {
		return worked
	}
	l.runTask("macrotask", fn)
	l.drainMicrotasks(ctx)
	return true
}

func (l *Loop) drainMicrotasks(ctx context.Context) bool {
	worked := false
	for ctx.Err() == nil {
		fn, ok := l.micro.TryDequeue()
		if !ok {
			break
		}
		worked = true
		l.runTask("microtask", fn)
	}
	return worked
}

// runTask runs fn, logging a panic instead of letting it kill the loop.
func (l *Loop) runTask(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked",
				"kind", kind,
				"panic", fmt.Sprint(r))
		}
	}()
	l.ran.Add(1)
	fn()
}

// dueTimer removes and returns the earliest timer whose deadline passed.
// Ties fire in the order the timers were set.
func (l *Loop) dueTimer() (func(), bool) {
	now := l.Now()

	l.tmu.Lock()
	defer l.tmu.Unlock()

	i := l.earliest()
	if i < 0 || l.timers[i].at.After(now) {
		return nil, false
	}
	t := l.timers[i]
	l.timers = slices.Delete(l.timers, i, i+1)
	return t.fn, true
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	l.tmu.Lock()
	defer l.tmu.Unlock()

	i := l.earliest()
	if i < 0 {
		return time.Time{}, false
	}
	return l.timers[i].at, true
}

// earliest returns the index of the next timer to fire, -1 if none.
// Caller holds tmu.
func (l *Loop) earliest() int {
	best := -1
	for i, t := range l.timers {
		if best < 0 || t.at.Before(l.timers[best].at) {
			best = i
		}
	}
	return best
}

func (l *Loop) advance(at time.Time) {
	l.tmu.Lock()
	defer l.tmu.Unlock()
	if d := at.Sub(l.start); d > l.offset {
		l.offset = d
	}
}
