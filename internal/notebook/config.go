package notebook

import (
	"fmt"
	"runtime"
)

// Default cell conventions.
const (
	DefaultIgnorePrefix  = "///"
	DefaultCommentPrefix = "//"
)

// Config is the per-notebook configuration. Builtins and Modules are
// plain Go data converted with interp.FromGo; no state is shared between
// notebooks.
type Config struct {
	// IgnorePrefix marks lines removed before segmentation.
	IgnorePrefix string

	// CommentPrefix marks the lines of a markdown cell.
	CommentPrefix string

	// AnalysisConcurrency bounds concurrent analysis of added cells.
	AnalysisConcurrency int

	// Builtins are the values inputs fall back to when no cell defines
	// their name.
	Builtins map[string]any

	// Modules are the modules cells can import by name.
	Modules map[string]any
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		IgnorePrefix:        DefaultIgnorePrefix,
		CommentPrefix:       DefaultCommentPrefix,
		AnalysisConcurrency: runtime.GOMAXPROCS(0),
	}
}

func (c Config) validate() error {
	if c.CommentPrefix == "" {
		return fmt.Errorf("comment prefix must not be empty")
	}
	if c.AnalysisConcurrency < 1 {
		return fmt.Errorf("analysis concurrency must be at least 1, got %d", c.AnalysisConcurrency)
	}
	return nil
}
