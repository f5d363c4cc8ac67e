package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/store"
)

func TestRun_TextOutput(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", sampleDocument)

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), doc)
	require.NoError(t, err)

	assert.Contains(t, out, "revision ")
	assert.Contains(t, out, "display 12")
	assert.Contains(t, out, "a = 2")
	assert.NotContains(t, out, "✗")
}

func TestRun_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", sampleDocument)

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "json"}), doc)
	require.NoError(t, err)

	var result struct {
		Settled  bool     `json:"settled"`
		Rejected []string `json:"rejected"`
		Snapshot struct {
			Cells      []map[string]any          `json:"cells"`
			CellStates map[string]map[string]any `json:"cell_states"`
		} `json:"snapshot"`
	}
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Settled)
	assert.Empty(t, result.Rejected)
	require.Len(t, result.Snapshot.Cells, 2)

	first := result.Snapshot.CellStates[result.Snapshot.Cells[0]["id"].(string)]
	assert.Equal(t, []any{12.0}, first["displays"])
}

func TestRun_RejectedCellsExitFailure(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1 + 1\n\nx + 1\n")

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "json"}), doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCellRejected, resp.Error.Code)
	assert.Equal(t, "1 cell(s) rejected", resp.Error.Message)
	assert.Len(t, result.Rejected, 1)
	assert.True(t, result.Settled)
}

func TestRun_TextReportsRejection(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1 + 1\n\nconst = 1\n")

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "rejected  SyntaxError")
	assert.Contains(t, out, "(line 3)")
	assert.Contains(t, out, "✗ 1 cell(s) rejected")
}

func TestRun_Unsettled(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "new Promise((resolve) => setTimeout(resolve, 60000))\n")

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--timeout", "50ms", doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "cells still computing at timeout")
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1\n")
	badConfig := writeFile(t, dir, "bad.cue", "analysisConcurrency: 0\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing document", []string{filepath.Join(dir, "missing.js")}, "document not found"},
		{"missing config", []string{"--config", filepath.Join(dir, "missing.cue"), doc}, "config file not found"},
		{"invalid config", []string{"--config", badConfig, doc}, "failed to load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRun_ConfigBuiltins(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "width / 2\n")
	cfg := writeFile(t, dir, "nb.cue", "builtins: { width: 640 }\n")

	out, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--config", cfg, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "display 320")
}

func TestRun_RecordsJournal(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", sampleDocument)
	db := filepath.Join(dir, "journal.db")

	_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--db", db, doc)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	revs, err := st.Revisions(context.Background())
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, sampleDocument, revs[0].Text)
	assert.Len(t, revs[0].Added, 2)

	ts, err := st.Transitions(context.Background(), store.TransitionFilter{Revision: revs[0].ID})
	require.NoError(t, err)
	assert.Len(t, ts, 4)
}

func TestRun_Metrics(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", sampleDocument)

	_, errOut, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--metrics", doc)
	require.NoError(t, err)

	assert.Contains(t, errOut, "# TYPE noticeable_notebook_documents_total counter")
	assert.Contains(t, errOut, "noticeable_notebook_documents_total 1")
	assert.Contains(t, errOut, "noticeable_notebook_cells 2")
	assert.Contains(t, errOut, `noticeable_cell_transitions_total{state="fulfilled"} 2`)
}

func TestRun_ConsoleGoesToStderr(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "console.log(\"hello from a cell\")\n")

	out, errOut, err := execute(NewRunCommand(&RootOptions{Format: "text"}), doc)
	require.NoError(t, err)
	assert.Contains(t, errOut, "hello from a cell")
	assert.NotContains(t, out, "hello from a cell")
}
