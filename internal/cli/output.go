package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/noticeable/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Cell failures, failed scenarios, non-deterministic replay
	ExitCommandError = 2 // Command error (invalid paths, bad config, database not found, etc.)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path not found
	ErrCodeConfig       = "E003" // Config file invalid
	ErrCodeDatabase     = "E004" // Journal open or query failed
	ErrCodeNotebook     = "E005" // Notebook could not be created or updated
	ErrCodeSyntax       = "E101" // Cell failed analysis
	ErrCodeCellRejected = "E102" // At least one cell settled rejected
	ErrCodeUnsettled    = "E103" // Cells still computing at the deadline
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Respond writes a full response in JSON format. Text callers render
// their own output.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	return f.encode(resp)
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Snapshot writes one snapshot: a single NDJSON line in JSON format, a
// block of cell lines otherwise.
func (f *OutputFormatter) Snapshot(snap ir.Snapshot) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(snap)
	}
	_, err := io.WriteString(f.Writer, formatSnapshot(snap))
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// formatSnapshot renders a snapshot for humans:
//
//	revision rev-1 (seq 3)
//	  1  3f2a9c1e  fulfilled  2
//	       display 12
//	       a = 2
func formatSnapshot(snap ir.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "revision %s (seq %d)\n", snap.Revision, snap.Seq)
	for _, cell := range snap.Cells {
		st, ok := snap.CellStates[cell.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %3d  %s  %s\n", cell.FirstLineNum+1, shortID(cell.ID), describeState(st))
		for _, d := range st.Displays {
			fmt.Fprintf(&b, "       display %s\n", formatValue(d))
		}
		for _, o := range st.Outputs {
			fmt.Fprintf(&b, "       %s = %s\n", o.Name, formatValue(o.Value))
		}
	}
	return b.String()
}

func describeState(st ir.CellState) string {
	if st.Kind == ir.KindMarkdown {
		return "markdown"
	}
	v := st.Variable
	switch v.Kind {
	case ir.StateFulfilled:
		return "fulfilled  " + formatValue(v.Value)
	case ir.StateRejected:
		msg := "rejected  " + v.Err.Error()
		if v.Line > 0 {
			msg += fmt.Sprintf(" (line %d)", v.Line)
		}
		return msg
	}
	return string(v.Kind)
}

// formatValue renders an exported cell value as compact JSON.
func formatValue(v any) string {
	if v == nil {
		return "undefined"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// rejectedCells returns the ids of code cells that settled rejected.
func rejectedCells(snap ir.Snapshot) []string {
	var ids []string
	for _, cell := range snap.Cells {
		st := snap.CellStates[cell.ID]
		if st.Kind == ir.KindCode && st.Variable.Kind == ir.StateRejected {
			ids = append(ids, cell.ID)
		}
	}
	return ids
}
