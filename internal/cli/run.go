package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/notebook"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Metrics  bool
	Timeout  time.Duration

	// Revisions allows overriding the revision token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Revisions notebook.RevisionGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Snapshot ir.Snapshot `json:"snapshot"`
	Settled  bool        `json:"settled"`
	Rejected []string    `json:"rejected,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Evaluate a document once",
		Long: `Evaluate a notebook document and print the settled cell states.

Every cell runs until nothing is left to compute or the timeout passes.
Cell console output goes to stderr.

Exit codes:
  0 - All cells settled without error
  1 - One or more cells were rejected, or cells were still running
  2 - Command error (missing document, bad config, etc.)

Examples:
  noticeable run notebook.js
  noticeable run notebook.js --config notebook.cue --db ./journal.db
  noticeable run notebook.js --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record revisions and transitions to this SQLite database")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print notebook metrics to stderr when done")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "how long cells may compute (default from config)")

	return cmd
}

func runDocument(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	text, err := readDocument(path)
	if err != nil {
		return err
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.Level())
	formatter := opts.formatter(cmd)

	st, err := openJournal(opts.Database, cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	nbOpts := []notebook.Option{
		notebook.WithLogger(logger),
		notebook.WithMetrics(notebook.NewMetrics(reg)),
		notebook.WithConsole(cmd.ErrOrStderr()),
	}
	if opts.Revisions != nil {
		nbOpts = append(nbOpts, notebook.WithRevisionGenerator(opts.Revisions))
	}
	nbOpts = append(nbOpts, journalOption(st)...)

	nb, err := notebook.New(cfg.Notebook(), nbOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create notebook", err)
	}
	defer nb.Close()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout()
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Debug("evaluating document", "path", path, "timeout", timeout)
	if err := nb.SetDocument(ctx, text); err != nil {
		return WrapExitError(ExitCommandError, "failed to set document", err)
	}

	settleCtx, cancel := context.WithTimeout(ctx, timeout)
	err = nb.Settle(settleCtx)
	cancel()
	settled := err == nil
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "notebook error", err)
	}
	if !settled {
		logger.Warn("cells still computing", "timeout", timeout)
	}

	snap := nb.Snapshot()
	result := RunResult{Snapshot: snap, Settled: settled, Rejected: rejectedCells(snap)}

	if opts.Metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), reg); err != nil {
			logger.Error("failed to write metrics", "error", err)
		}
	}

	return outputRun(formatter, result)
}

func outputRun(formatter *OutputFormatter, result RunResult) error {
	var cliErr *CLIError
	switch {
	case len(result.Rejected) > 0:
		cliErr = &CLIError{
			Code:    ErrCodeCellRejected,
			Message: fmt.Sprintf("%d cell(s) rejected", len(result.Rejected)),
			Details: result.Rejected,
		}
	case !result.Settled:
		cliErr = &CLIError{Code: ErrCodeUnsettled, Message: "cells still computing at timeout"}
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if cliErr != nil {
			resp.Status = "error"
			resp.Error = cliErr
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		if err := formatter.Snapshot(result.Snapshot); err != nil {
			return err
		}
		if cliErr != nil {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", cliErr.Message)
		}
	}

	if cliErr != nil {
		return NewExitError(ExitFailure, cliErr.Message)
	}
	return nil
}

// writeMetrics dumps every gathered family in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// signalContext derives a context from the command's context that ends
// on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
