package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_JSON(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", `// notes

a + 10

const a = await Promise.resolve(1)

import {x} from "lib"
`)

	out, _, err := execute(NewAnalyzeCommand(&RootOptions{Format: "json"}), doc)
	require.NoError(t, err)

	var result AnalyzeResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Cells, 3)

	expr := result.Cells[0]
	assert.Equal(t, 3, expr.Line)
	assert.True(t, expr.Expression)
	assert.Equal(t, []string{"a"}, expr.Inputs)
	assert.Empty(t, expr.Outputs)
	// The injected display awaits the expression.
	assert.True(t, expr.Async)
	assert.Contains(t, expr.Transpiled, "display")

	decl := result.Cells[1]
	assert.False(t, decl.Expression)
	assert.True(t, decl.Async)
	assert.Equal(t, []string{"a"}, decl.Declarations)
	assert.Equal(t, []string{"a"}, decl.Outputs)
	assert.Contains(t, decl.Transpiled, "report_outputs")

	imp := result.Cells[2]
	assert.Equal(t, []string{"lib"}, imp.Imports)
	assert.Equal(t, []string{"x"}, imp.Outputs)
	assert.True(t, imp.Async)
}

func TestAnalyze_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1 + 1\n\nconst = 1\n")

	out, _, err := execute(NewAnalyzeCommand(&RootOptions{Format: "text"}), doc)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ ")
	assert.Contains(t, out, "line 1  (expression, async)")
	assert.Contains(t, out, "line 3: SyntaxError")
	assert.Contains(t, out, "2 cell(s), 1 failed")
}

func TestAnalyze_SyntaxErrorJSON(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "\n\nconst = 1\n")

	out, _, err := execute(NewAnalyzeCommand(&RootOptions{Format: "json"}), doc)
	require.Error(t, err)

	var result AnalyzeResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyntax, resp.Error.Code)
	require.Len(t, result.Cells, 1)
	assert.Equal(t, 3, result.Cells[0].ErrorLine)
	assert.Contains(t, result.Cells[0].Error, "SyntaxError")
}

func TestAnalyze_VerboseShowsTranspiled(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "const b = 2\n")

	out, _, err := execute(NewAnalyzeCommand(&RootOptions{Format: "text", Verbose: true}), doc)
	require.NoError(t, err)
	assert.Contains(t, out, "outputs: b")
	assert.Contains(t, out, "  | report_outputs({b});")
}
