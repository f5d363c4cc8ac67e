package notebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/noticeable/internal/analyzer"
	"github.com/roach88/noticeable/internal/cells"
	"github.com/roach88/noticeable/internal/graph"
	"github.com/roach88/noticeable/internal/interp"
	"github.com/roach88/noticeable/internal/ir"
)

// ErrClosed is returned by SetDocument after Close.
var ErrClosed = errors.New("notebook closed")

// Controller owns one notebook: its interpreter, graph and published
// snapshot.
//
// SetDocument, Snapshot, Subscribe, Settle and Close are safe to call from
// any goroutine. Only one goroutine should drive the loop (Run or Settle)
// at a time.
type Controller struct {
	cfg       Config
	logger    *slog.Logger
	analyzer  *analyzer.Analyzer
	revisions RevisionGenerator
	journal   Journal
	metrics   *Metrics
	clock     *Clock

	loop *graph.Loop
	in   *interp.Interp
	rt   *graph.Runtime

	docMu  sync.Mutex // serializes SetDocument
	closed atomic.Bool

	// Loop-owned: touched only inside Loop.Exclusive or loop tasks.
	revision string
	order    []ir.Cell
	cells    map[string]*cellRuntime
	issued   map[string]bool
	batching bool
	dirty    bool

	smu       sync.Mutex
	published ir.Snapshot
	subs      map[int]func(ir.Snapshot)
	nextSub   int
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	revisions RevisionGenerator
	journal   Journal
	metrics   *Metrics
	console   io.Writer
	now       func() time.Time
	virtual   bool
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRevisionGenerator sets how revision tokens are made.
// Default: UUIDv7Generator.
func WithRevisionGenerator(gen RevisionGenerator) Option {
	return func(o *options) {
		o.revisions = gen
	}
}

// WithJournal records revisions and transitions to j.
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithMetrics sets the collectors the controller updates.
// Default: collectors on a private registry.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConsole sets where console output of cells goes. Default: discarded.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithClock sets the wall clock seen by cells and timers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithVirtualTime makes timers fire without waiting once the loop is
// otherwise idle.
func WithVirtualTime() Option {
	return func(o *options) {
		o.virtual = true
	}
}

// New creates a notebook with an empty document.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid notebook config: %w", err)
	}

	o := options{
		logger:    slog.Default(),
		revisions: UUIDv7Generator{},
		console:   io.Discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(prometheus.NewRegistry())
	}

	loopOpts := []graph.LoopOption{graph.WithLoopLogger(o.logger), graph.WithLoopClock(o.now)}
	if o.virtual {
		loopOpts = append(loopOpts, graph.WithVirtualTime())
	}
	loop := graph.NewLoop(loopOpts...)

	in := interp.New(
		interp.WithScheduler(loop),
		interp.WithLogger(o.logger),
		interp.WithConsole(o.console),
		interp.WithClock(loop.Now),
		interp.WithModules(cfg.Modules),
	)

	builtins := make(map[string]interp.Value, len(cfg.Builtins))
	for name, v := range cfg.Builtins {
		builtins[name] = in.FromGo(v)
	}

	c := &Controller{
		cfg:       cfg,
		logger:    o.logger,
		analyzer:  analyzer.New(analyzer.WithLogger(o.logger)),
		revisions: o.revisions,
		journal:   o.journal,
		metrics:   o.metrics,
		clock:     NewClock(),
		loop:      loop,
		in:        in,
		rt:        graph.NewRuntime(in, graph.WithBuiltins(builtins), graph.WithRuntimeLogger(o.logger)),
		cells:     make(map[string]*cellRuntime),
		issued:    make(map[string]bool),
		subs:      make(map[int]func(ir.Snapshot)),
		published: ir.Snapshot{Cells: []ir.Cell{}, CellStates: map[string]ir.CellState{}},
	}
	return c, nil
}

// SetDocument replaces the notebook text.
//
// Removed cells are deleted before any added cell is defined, and the
// whole change is published as one snapshot. New code cells are Pending
// when SetDocument returns; their values arrive as the loop runs.
//
// Returns an error only if ctx ends before the graph was changed; cell
// failures become Rejected states.
func (c *Controller) SetDocument(ctx context.Context, text string) error {
	c.docMu.Lock()
	defer c.docMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	c.metrics.documents.Inc()

	stripped := cells.StripIgnored(text, c.cfg.IgnorePrefix)
	next := cells.AssignIDs(cells.Split(stripped))

	var prev []ir.Cell
	c.loop.Exclusive(func() { prev = c.order })
	delta := cells.Diff(prev, next)

	byID := make(map[string]ir.Cell, len(next))
	for _, cell := range next {
		byID[cell.ID] = cell
	}
	added := make([]ir.Cell, len(delta.Added))
	for i, id := range delta.Added {
		added[i] = byID[id]
	}

	prepared := c.prepareAll(ctx, added)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set document: %w", err)
	}

	rev := c.revisions.Generate()
	c.logger.Debug("set document",
		"revision", rev,
		"cells", len(next),
		"added", len(delta.Added),
		"removed", len(delta.Removed))

	c.loop.Exclusive(func() {
		c.batching = true
		defer func() {
			c.batching = false
			c.publish()
		}()

		c.revision = rev
		c.order = next
		c.dirty = true
		c.recordRevision(ir.Revision{
			ID:      rev,
			Seq:     c.clock.Current(),
			Text:    text,
			Cells:   cellIDs(next),
			Added:   delta.Added,
			Removed: delta.Removed,
		})

		for _, id := range delta.Removed {
			c.remove(id)
		}
		for _, p := range prepared {
			c.define(p)
		}
	})

	c.metrics.cellsAdded.Add(float64(len(delta.Added)))
	c.metrics.cellsRemoved.Add(float64(len(delta.Removed)))
	c.metrics.liveCells.Set(float64(len(next)))
	return nil
}

// Snapshot returns the latest published snapshot.
func (c *Controller) Snapshot() ir.Snapshot {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.published
}

// Subscribe calls fn with every snapshot published from now on. fn runs
// on the loop and must not call SetDocument or Close.
func (c *Controller) Subscribe(fn func(ir.Snapshot)) (cancel func()) {
	c.smu.Lock()
	defer c.smu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.smu.Lock()
		defer c.smu.Unlock()
		delete(c.subs, id)
	}
}

// Run drives computation until ctx ends or the notebook is closed.
func (c *Controller) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

// Settle drives computation on the caller until nothing is left to run.
func (c *Controller) Settle(ctx context.Context) error {
	return c.loop.Settle(ctx)
}

// Close stops running cells, abandons suspended ones and stops the loop.
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.in.Interrupt()
	c.loop.Exclusive(func() {
		c.in.Shutdown()
	})
	c.loop.Close()
}

// Runtime exposes the graph for inspection.
func (c *Controller) Runtime() *graph.Runtime {
	return c.rt
}

// publish builds and delivers a snapshot. Inside a batch it only marks
// the snapshot dirty; the batch publishes once at the end.
func (c *Controller) publish() {
	if c.batching {
		c.dirty = true
		return
	}
	if !c.dirty {
		return
	}
	c.dirty = false

	states := make(map[string]ir.CellState, len(c.cells))
	for id, cr := range c.cells {
		states[id] = cr.state.Clone()
	}
	snap := ir.Snapshot{
		Revision:   c.revision,
		Seq:        c.clock.Next(),
		Cells:      slices.Clone(c.order),
		CellStates: states,
	}

	c.smu.Lock()
	c.published = snap
	subs := slices.Collect(maps.Values(c.subs))
	c.smu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) recordRevision(rev ir.Revision) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordRevision(context.Background(), rev); err != nil {
		c.logger.Error("journal revision failed", "revision", rev.ID, "error", err)
	}
}

func (c *Controller) recordTransition(cr *cellRuntime) {
	st := cr.state
	t := ir.Transition{
		Revision: c.revision,
		Seq:      c.clock.Current(),
		CellID:   cr.cell.ID,
		Kind:     st.Kind,
	}
	if st.Kind == ir.KindCode {
		t.State = st.Variable.Kind
		t.Line = st.Variable.Line
		switch st.Variable.Kind {
		case ir.StateFulfilled:
			t.Value = st.Variable.Value
		case ir.StateRejected:
			t.Error = st.Variable.Err.Error()
		}
		if st.Variable.Kind != ir.StatePending {
			t.Displays = slices.Clone(st.Displays)
			t.Outputs = slices.Clone(st.Outputs)
		}
		c.metrics.transitions.WithLabelValues(string(st.Variable.Kind)).Inc()
	}
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordTransition(context.Background(), t); err != nil {
		c.logger.Error("journal transition failed", "cell", t.CellID, "error", err)
	}
}

func cellIDs(cs []ir.Cell) []string {
	ids := make([]string, len(cs))
	for i, cell := range cs {
		ids[i] = cell.ID
	}
	return ids
}
