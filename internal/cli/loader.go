package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/noticeable/internal/config"
	"github.com/roach88/noticeable/internal/notebook"
	"github.com/roach88/noticeable/internal/store"
)

// loadConfig reads the config file at path, or returns the defaults when
// path is empty.
func loadConfig(path string) (*config.File, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// readDocument reads a notebook document.
func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("document not found: %s", path))
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read document", err)
	}
	return string(data), nil
}

// openJournal opens the journal named by the flag, falling back to the
// config file. Returns a nil store when neither names one.
func openJournal(flag string, cfg *config.File) (*store.Store, error) {
	path := flag
	if path == "" {
		path = cfg.Journal
	}
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// journalOption returns the notebook option recording to st, if any.
func journalOption(st *store.Store) []notebook.Option {
	if st == nil {
		return nil
	}
	return []notebook.Option{notebook.WithJournal(st)}
}

// openExisting opens a journal that must already exist.
func openExisting(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
