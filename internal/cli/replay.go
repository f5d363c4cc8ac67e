package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/noticeable/internal/config"
	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/notebook"
	"github.com/roach88/noticeable/internal/store"
	"github.com/roach88/noticeable/internal/testutil"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Config   string
	Timeout  time.Duration
}

// CellMismatch is a cell whose replayed final state differs from the
// journal.
type CellMismatch struct {
	CellID   string `json:"cell_id"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Revisions     int            `json:"revisions"`
	Transitions   int            `json:"transitions"`
	Deterministic bool           `json:"deterministic"`
	Mismatches    []CellMismatch `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled documents and verify determinism",
		Long: `Replay every document recorded in a journal and verify determinism.

Each recorded revision is set, in order, on a fresh notebook running on
virtual time. This is done twice and the two runs must record identical
transitions. The final cell states are also compared with the journal;
differences there are reported as warnings, since the recorded session
may have been stopped before its cells settled.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  noticeable replay --db ./journal.db
  noticeable replay --db ./journal.db --config notebook.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE config file used by the recorded session")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "how long each revision may compute (default from config)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout()
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.Level())

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	revs, err := st.Revisions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read revisions", err)
	}

	if len(revs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Deterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No revisions found in database.")
		return nil
	}

	// Replay the documents twice
	first, err := replayRevisions(ctx, cfg, revs, timeout, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "first replay failed", err)
	}
	second, err := replayRevisions(ctx, cfg, revs, timeout, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	recorded, err := st.Transitions(ctx, store.TransitionFilter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	last := revs[len(revs)-1]
	result := ReplayResult{
		Revisions:     len(revs),
		Transitions:   len(first),
		Deterministic: reflect.DeepEqual(first, second),
		Mismatches:    compareFinalStates(last.Cells, recorded, first),
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// recordedRevisions hands out journaled revision tokens in order, so a
// replay records under the same ids.
type recordedRevisions struct {
	ids  []string
	next int
}

func (r *recordedRevisions) Generate() string {
	r.next++
	if r.next > len(r.ids) {
		return fmt.Sprintf("replay-%d", r.next)
	}
	return r.ids[r.next-1]
}

// replayRevisions sets each revision's document on a fresh notebook and
// returns the transitions it records.
func replayRevisions(ctx context.Context, cfg *config.File, revs []ir.Revision, timeout time.Duration, logger *slog.Logger) ([]ir.Transition, error) {
	journal, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer journal.Close()

	ids := make([]string, len(revs))
	for i, rev := range revs {
		ids[i] = rev.ID
	}

	nb, err := notebook.New(cfg.Notebook(),
		notebook.WithLogger(logger),
		notebook.WithJournal(journal),
		notebook.WithConsole(io.Discard),
		notebook.WithVirtualTime(),
		notebook.WithClock(testutil.NewManualClock(time.Time{}).Now),
		notebook.WithRevisionGenerator(&recordedRevisions{ids: ids}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notebook: %w", err)
	}
	defer nb.Close()

	for _, rev := range revs {
		if err := nb.SetDocument(ctx, rev.Text); err != nil {
			return nil, fmt.Errorf("revision %s: %w", rev.ID, err)
		}
		sctx, cancel := context.WithTimeout(ctx, timeout)
		err := nb.Settle(sctx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("revision %s: settle: %w", rev.ID, err)
		}
		if err != nil {
			logger.Warn("revision did not settle", "revision", rev.ID, "timeout", timeout)
		}
	}

	return journal.Transitions(ctx, store.TransitionFilter{})
}

// compareFinalStates compares the last transition of each live cell in
// two journals.
func compareFinalStates(cells []string, recorded, replayed []ir.Transition) []CellMismatch {
	want, got := finalStates(recorded), finalStates(replayed)

	var out []CellMismatch
	for _, id := range cells {
		w, g := describeFinal(want, id), describeFinal(got, id)
		if w != g {
			out = append(out, CellMismatch{CellID: id, Recorded: w, Replayed: g})
		}
	}
	return out
}

func finalStates(ts []ir.Transition) map[string]ir.Transition {
	out := make(map[string]ir.Transition)
	for _, t := range ts {
		out[t.CellID] = t
	}
	return out
}

func describeFinal(states map[string]ir.Transition, id string) string {
	t, ok := states[id]
	if !ok {
		return "none"
	}
	return describeTransition(t)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d revision(s), %d transition(s)\n", result.Revisions, result.Transitions)
	fmt.Fprintln(w)

	if len(result.Mismatches) > 0 {
		fmt.Fprintf(w, "Warning: %d cell(s) settled differently than recorded\n", len(result.Mismatches))
		for _, m := range result.Mismatches {
			fmt.Fprintf(w, "  %s\n    recorded: %s\n    replayed: %s\n", shortID(m.CellID), m.Recorded, m.Replayed)
		}
		fmt.Fprintln(w)
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
