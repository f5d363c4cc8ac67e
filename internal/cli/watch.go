package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/notebook"
)

// DefaultDebounce is how long the watcher waits for writes to a document
// to stop before reloading it.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Config   string
	Database string
	Debounce time.Duration

	// Revisions allows overriding the revision token generator (for testing).
	Revisions notebook.RevisionGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Re-evaluate a document whenever it changes",
		Long: `Evaluate a notebook document and keep it live.

Every save of the document becomes a new revision: cells whose code is
unchanged keep their state, edited cells recompute along with everything
that reads them. Each published snapshot is printed, as one NDJSON line
per snapshot with --format json.

Press Ctrl-C to stop.

Examples:
  noticeable watch notebook.js
  noticeable watch notebook.js --format json | jq .cell_states
  noticeable watch notebook.js --db ./journal.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record revisions and transitions to this SQLite database")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period before a changed document is reloaded")

	return cmd
}

func watchDocument(opts *WatchOptions, path string, cmd *cobra.Command) error {
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

	nbOpts := []notebook.Option{
		notebook.WithLogger(logger),
		notebook.WithMetrics(notebook.NewMetrics(prometheus.NewRegistry())),
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

	// Snapshots publish from the loop and from SetDocument.
	var mu sync.Mutex
	cancelSub := nb.Subscribe(func(snap ir.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if err := formatter.Snapshot(snap); err != nil {
			logger.Error("failed to write snapshot", "error", err)
		}
	})
	defer cancelSub()

	w, err := newDocumentWatcher(path, opts.Debounce, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch document", err)
	}
	defer w.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := nb.SetDocument(ctx, text); err != nil {
		return WrapExitError(ExitCommandError, "failed to set document", err)
	}
	logger.Info("watching document", "path", path)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return nb.Run(gctx)
	})
	g.Go(func() error {
		return w.Watch(gctx, func() {
			text, err := readDocument(path)
			if err != nil {
				logger.Warn("failed to reload document", "path", path, "error", err)
				return
			}
			if err := nb.SetDocument(gctx, text); err != nil {
				logger.Error("failed to set document", "path", path, "error", err)
			}
		})
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch stopped", err)
	}
	logger.Info("watch stopped")
	return nil
}

// documentWatcher reports debounced changes of one file.
//
// It watches the file's directory rather than the file, so editors that
// save by renaming a temporary file over the original are still seen.
type documentWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

func newDocumentWatcher(path string, debounce time.Duration, logger *slog.Logger) (*documentWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &documentWatcher{path: abs, debounce: debounce, logger: logger, watcher: fw}, nil
}

// Watch calls reload after each burst of changes to the file until ctx
// ends. reload runs on the calling goroutine.
func (w *documentWatcher) Watch(ctx context.Context, reload func()) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("document changed", "path", event.Name, "op", event.Op.String())

			// Restart the quiet period on every event of a burst.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops watching.
func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}
