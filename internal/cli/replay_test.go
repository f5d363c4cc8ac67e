package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/ir"
)

func TestReplay_Deterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	recordSession(t, db,
		sampleDocument,
		"a + 10\n\nconst a = await new Promise(r => setTimeout(() => r(7), 1000))\n",
		"a + 10\n",
	)

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 3 revision(s)")
	assert.Contains(t, out, "✓ Replay verified deterministic")
	assert.NotContains(t, out, "Warning")
}

func TestReplay_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	recordSession(t, db, sampleDocument, "const = 1\n")

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Deterministic)
	assert.Equal(t, 2, result.Revisions)
	assert.Positive(t, result.Transitions)
	assert.Empty(t, result.Mismatches)
}

func TestReplay_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	recordSession(t, db)

	out, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No revisions found in database.")
}

func TestReplay_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	_, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplay_RequiresDatabase(t *testing.T) {
	_, _, err := execute(NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestRecordedRevisions(t *testing.T) {
	gen := &recordedRevisions{ids: []string{"a", "b"}}
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Equal(t, "replay-3", gen.Generate())
}

func TestCompareFinalStates(t *testing.T) {
	recorded := []ir.Transition{
		{CellID: "x", Kind: ir.KindCode, State: ir.StatePending},
		{CellID: "x", Kind: ir.KindCode, State: ir.StateFulfilled, Value: 1.0},
		{CellID: "y", Kind: ir.KindCode, State: ir.StatePending},
	}
	replayed := []ir.Transition{
		{CellID: "x", Kind: ir.KindCode, State: ir.StateFulfilled, Value: 1.0},
		{CellID: "y", Kind: ir.KindCode, State: ir.StateFulfilled, Value: 2.0},
	}

	got := compareFinalStates([]string{"x", "y", "z"}, recorded, replayed)
	require.Len(t, got, 1)
	assert.Equal(t, CellMismatch{CellID: "y", Recorded: "pending", Replayed: "fulfilled 2"}, got[0])
}

func TestCompareFinalStates_Displays(t *testing.T) {
	recorded := []ir.Transition{
		{CellID: "x", Kind: ir.KindCode, State: ir.StateFulfilled, Displays: []any{12.0}},
		{CellID: "y", Kind: ir.KindCode, State: ir.StateFulfilled, Outputs: []ir.NamedValue{{Name: "a", Value: 2.0}}},
	}
	replayed := []ir.Transition{
		{CellID: "x", Kind: ir.KindCode, State: ir.StateFulfilled, Displays: []any{13.0}},
		{CellID: "y", Kind: ir.KindCode, State: ir.StateFulfilled, Outputs: []ir.NamedValue{{Name: "a", Value: 2.0}}},
	}

	got := compareFinalStates([]string{"x", "y"}, recorded, replayed)
	require.Len(t, got, 1)
	assert.Equal(t, CellMismatch{CellID: "x", Recorded: "fulfilled display 12", Replayed: "fulfilled display 13"}, got[0])
}
