package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/notebook"
	"github.com/roach88/noticeable/internal/store"
	"github.com/roach88/noticeable/internal/testutil"
)

// DefaultSettleTimeout bounds how long one step may compute.
const DefaultSettleTimeout = 5 * time.Second

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	logger        *slog.Logger
	settleTimeout time.Duration
}

// WithLogger sets the notebook logger. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = logger
	}
}

// WithSettleTimeout bounds how long one step may compute.
func WithSettleTimeout(d time.Duration) Option {
	return func(o *runOptions) {
		o.settleTimeout = d
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh notebook and in-memory journal.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create a fresh in-memory journal and notebook
// 2. For each step: set the document, settle, check expectations
// 3. Read back the journal and evaluate assertions
//
// An error is returned only when the scenario could not be executed;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		settleTimeout: DefaultSettleTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var console bytes.Buffer
	nb, err := notebook.New(notebookConfig(scenario.Config),
		notebook.WithLogger(o.logger),
		notebook.WithJournal(st),
		notebook.WithConsole(&console),
		notebook.WithVirtualTime(),
		notebook.WithClock(testutil.NewManualClock(time.Time{}).Now),
		notebook.WithRevisionGenerator(testutil.NewSequenceGenerator(scenario.RevisionPrefix)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notebook: %w", err)
	}
	defer nb.Close()

	ctx := context.Background()
	result := NewResult()
	codes := make(map[string]string) // cell id -> code, including removed cells

	for i, step := range scenario.Steps {
		if err := nb.SetDocument(ctx, step.Document); err != nil {
			return nil, fmt.Errorf("step %d: set document: %w", i, err)
		}

		sctx, cancel := context.WithTimeout(ctx, o.settleTimeout)
		err := nb.Settle(sctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("step %d: settle: %w", i, err)
		}

		snap := nb.Snapshot()
		for _, cell := range snap.Cells {
			codes[cell.ID] = cell.Code
		}
		for _, msg := range checkStep(i, step, snap, console.String()) {
			result.AddError(msg)
		}
	}

	result.Final = nb.Snapshot()
	result.Console = console.String()

	if result.Revisions, err = st.Revisions(ctx); err != nil {
		return nil, fmt.Errorf("failed to read revisions: %w", err)
	}
	transitions, err := st.Transitions(ctx, store.TransitionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}
	for _, t := range transitions {
		result.Trace = append(result.Trace, traceEvent(t, codes[t.CellID]))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func notebookConfig(sc *ScenarioConfig) notebook.Config {
	cfg := notebook.DefaultConfig()
	if sc == nil {
		return cfg
	}
	if sc.IgnorePrefix != "" {
		cfg.IgnorePrefix = sc.IgnorePrefix
	}
	if sc.CommentPrefix != "" {
		cfg.CommentPrefix = sc.CommentPrefix
	}
	cfg.Builtins = sc.Builtins
	if len(sc.Modules) > 0 {
		cfg.Modules = make(map[string]any, len(sc.Modules))
		for name, m := range sc.Modules {
			cfg.Modules[name] = m
		}
	}
	return cfg
}

func traceEvent(t ir.Transition, code string) TraceEvent {
	return TraceEvent{
		Revision: t.Revision,
		Seq:      t.Seq,
		CellID:   t.CellID,
		Cell:     strings.TrimSpace(code),
		Kind:     t.Kind,
		State:    t.State,
		Value:    t.Value,
		Error:    t.Error,
		Line:     t.Line,
	}
}
