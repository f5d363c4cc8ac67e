package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeConfig, "invalid config", map[string]string{"file": "nb.cue"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "invalid config", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "failed", "more"))
			assert.Contains(t, buf.String(), "Error [E001]: failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: more")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "nb.js")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Processing nb.js")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_SnapshotJSONIsOneLine(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	snap := ir.Snapshot{
		Revision: "rev-1",
		Seq:      2,
		Cells:    []ir.Cell{{ID: "c1", Code: "1 + 1"}},
		CellStates: map[string]ir.CellState{
			"c1": {Kind: ir.KindCode, Variable: ir.Fulfilled(2.0), Displays: []any{2.0}},
		},
	}
	require.NoError(t, formatter.Snapshot(snap))
	require.NoError(t, formatter.Snapshot(snap))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &decoded))
	assert.Equal(t, "rev-1", decoded["revision"])
}

func TestFormatSnapshot(t *testing.T) {
	rejected := ir.Rejected(errors.New("x is not defined"))
	rejected.Line = 5

	snap := ir.Snapshot{
		Revision: "rev-2",
		Seq:      7,
		Cells: []ir.Cell{
			{ID: "aaaaaaaaaaaa", Code: "a + 10", FirstLineNum: 0},
			{ID: "bbbbbbbbbbbb", Code: "const a = 2", FirstLineNum: 2},
			{ID: "cccccccccccc", Code: "x + 1", FirstLineNum: 4},
			{ID: "dddddddddddd", Code: "// # Title", FirstLineNum: 6},
			{ID: "eeeeeeeeeeee", Code: "later", FirstLineNum: 8},
		},
		CellStates: map[string]ir.CellState{
			"aaaaaaaaaaaa": {Kind: ir.KindCode, Variable: ir.Fulfilled(nil), Displays: []any{12.0}},
			"bbbbbbbbbbbb": {Kind: ir.KindCode, Variable: ir.Fulfilled(map[string]any{"a": 2.0}), Outputs: []ir.NamedValue{{Name: "a", Value: 2.0}}},
			"cccccccccccc": {Kind: ir.KindCode, Variable: rejected},
			"dddddddddddd": {Kind: ir.KindMarkdown, Markdown: "# Title"},
			"eeeeeeeeeeee": {Kind: ir.KindCode, Variable: ir.Pending()},
		},
	}

	want := "revision rev-2 (seq 7)\n" +
		"    1  aaaaaaaa  fulfilled  undefined\n" +
		"       display 12\n" +
		"    3  bbbbbbbb  fulfilled  {\"a\":2}\n" +
		"       a = 2\n" +
		"    5  cccccccc  rejected  x is not defined (line 5)\n" +
		"    7  dddddddd  markdown\n" +
		"    9  eeeeeeee  pending\n"
	assert.Equal(t, want, formatSnapshot(snap))
}

func TestRejectedCells(t *testing.T) {
	snap := ir.Snapshot{
		Cells: []ir.Cell{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		CellStates: map[string]ir.CellState{
			"a": {Kind: ir.KindCode, Variable: ir.Rejected(errors.New("boom"))},
			"b": {Kind: ir.KindMarkdown},
			"c": {Kind: ir.KindCode, Variable: ir.Fulfilled(1.0)},
		},
	}
	assert.Equal(t, []string{"a"}, rejectedCells(snap))
}

func TestExitError(t *testing.T) {
	plain := NewExitError(ExitCommandError, "document not found: x.js")
	assert.Equal(t, "document not found: x.js", plain.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(plain))

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitFailure, "failed to write", cause)
	assert.Equal(t, "failed to write: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	// Wrapped again by fmt, the exit code survives.
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", plain)))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("other")))
}
