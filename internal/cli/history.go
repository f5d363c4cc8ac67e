package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Revision string // optional - one revision only
	Cell     string // optional - filter to one cell id or id prefix
}

// RevisionHistory is one revision and the transitions recorded under it.
type RevisionHistory struct {
	Revision    ir.Revision     `json:"revision"`
	Transitions []ir.Transition `json:"transitions"`
}

// HistoryStats holds summary statistics for the journal.
type HistoryStats struct {
	Revisions   int `json:"revisions"`
	Transitions int `json:"transitions"`
	Fulfilled   int `json:"fulfilled"`
	Rejected    int `json:"rejected"`
}

// HistoryResult holds the complete history output.
type HistoryResult struct {
	Revisions []RevisionHistory `json:"revisions"`
	Stats     HistoryStats      `json:"stats"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the revision journal",
		Long: `Print the revisions and cell state transitions recorded in a journal.

The output includes:
- Revisions: every document set, with the cells it added and removed
- Transitions: each cell's pending, fulfilled and rejected states in order
- Stats: summary counts

Examples:
  noticeable history --db ./journal.db
  noticeable history --db ./journal.db --revision 0192f3c4-...
  noticeable history --db ./journal.db --cell 3f2a9c1e --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Revision, "revision", "", "show one revision only")
	cmd.Flags().StringVar(&opts.Cell, "cell", "", "filter to one cell (id or id prefix)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := loadHistory(ctx, st, opts.Revision, opts.Cell)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	outputHistoryText(cmd, result, opts.Verbose)
	return nil
}

func loadHistory(ctx context.Context, st *store.Store, revision, cell string) (HistoryResult, error) {
	var revs []ir.Revision
	if revision != "" {
		rev, found, err := st.Revision(ctx, revision)
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read revision", err)
		}
		if !found {
			return HistoryResult{}, NewExitError(ExitCommandError, fmt.Sprintf("revision not found: %s", revision))
		}
		revs = []ir.Revision{rev}
	} else {
		all, err := st.Revisions(ctx)
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read revisions", err)
		}
		revs = all
	}

	result := HistoryResult{Revisions: make([]RevisionHistory, 0, len(revs))}
	for _, rev := range revs {
		ts, err := st.Transitions(ctx, store.TransitionFilter{Revision: rev.ID})
		if err != nil {
			return HistoryResult{}, WrapExitError(ExitCommandError, "failed to read transitions", err)
		}

		kept := make([]ir.Transition, 0, len(ts))
		for _, t := range ts {
			if cell != "" && !strings.HasPrefix(t.CellID, cell) {
				continue
			}
			kept = append(kept, t)
			switch t.State {
			case ir.StateFulfilled:
				result.Stats.Fulfilled++
			case ir.StateRejected:
				result.Stats.Rejected++
			}
		}
		result.Stats.Transitions += len(kept)
		result.Revisions = append(result.Revisions, RevisionHistory{Revision: rev, Transitions: kept})
	}
	result.Stats.Revisions = len(result.Revisions)
	return result, nil
}

func outputHistoryText(cmd *cobra.Command, result HistoryResult, verbose bool) {
	w := cmd.OutOrStdout()

	if len(result.Revisions) == 0 {
		fmt.Fprintln(w, "No revisions found in database.")
		return
	}

	for _, rh := range result.Revisions {
		rev := rh.Revision
		fmt.Fprintf(w, "Revision %s (seq %d): %d cell(s), +%d -%d\n",
			rev.ID, rev.Seq, len(rev.Cells), len(rev.Added), len(rev.Removed))
		if verbose {
			for _, id := range rev.Added {
				fmt.Fprintf(w, "  + %s\n", shortID(id))
			}
			for _, id := range rev.Removed {
				fmt.Fprintf(w, "  - %s\n", shortID(id))
			}
		}
		for _, t := range rh.Transitions {
			fmt.Fprintf(w, "  [seq %d] %s %s\n", t.Seq, shortID(t.CellID), describeTransition(t))
		}
		fmt.Fprintln(w)
	}

	s := result.Stats
	fmt.Fprintf(w, "%d revision(s), %d transition(s): %d fulfilled, %d rejected\n",
		s.Revisions, s.Transitions, s.Fulfilled, s.Rejected)
}

func describeTransition(t ir.Transition) string {
	var b strings.Builder
	switch {
	case t.Kind == ir.KindMarkdown:
		return "markdown"
	case t.State == ir.StateFulfilled:
		b.WriteString("fulfilled")
		// Expression and declaration cells return nothing worth showing.
		if len(t.Displays) == 0 && len(t.Outputs) == 0 {
			b.WriteString(" " + formatValue(t.Value))
		}
	case t.State == ir.StateRejected:
		b.WriteString("rejected " + t.Error)
		if t.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", t.Line)
		}
	default:
		return string(t.State)
	}
	for _, d := range t.Displays {
		b.WriteString(" display " + formatValue(d))
	}
	for _, o := range t.Outputs {
		fmt.Fprintf(&b, " %s=%s", o.Name, formatValue(o.Value))
	}
	return b.String()
}
