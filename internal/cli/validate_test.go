package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.cue", "analysisConcurrency: 4\n")
	b := writeFile(t, dir, "b.cue", "builtins: { width: 640 }\nsettleTimeout: \"2s\"\n")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 config file(s) valid")
}

func TestValidate_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.cue", "logLevel: \"debug\"\n")
	bad := writeFile(t, dir, "bad.cue", "logLevel: \"loud\"\n")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
}

func TestValidate_InvalidFileJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.cue", "settleTimeout: \"-1s\"\n")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), bad)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Files, 1)
	assert.NotEmpty(t, result.Files[0].Error)
}

func TestValidate_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.cue")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: config file not found")
}

func TestValidate_RequiresArgs(t *testing.T) {
	_, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
