package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/ir"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(f)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_RecordsJournal(t *testing.T) {
	s := &Scenario{
		Name:        "journal",
		Description: "journal contents",
		Steps: []Step{
			{Document: "a + 10\n\nconst a = 1 + 1"},
			{Document: "a + 10"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	require.Len(t, result.Revisions, 2)
	assert.Equal(t, "rev-1", result.Revisions[0].ID)
	assert.Equal(t, "rev-2", result.Revisions[1].ID)
	assert.Len(t, result.Revisions[0].Added, 2)
	assert.Len(t, result.Revisions[1].Removed, 1)
	assert.Empty(t, result.Revisions[1].Added)

	var states []string
	for _, e := range result.Trace {
		if e.Cell == "a + 10" {
			states = append(states, string(e.State))
		}
	}
	assert.Equal(t, []string{"pending", "fulfilled", "pending", "rejected"}, states)

	// The removed cell keeps its code in the trace.
	var removed []TraceEvent
	for _, e := range result.Trace {
		if e.Cell == "const a = 1 + 1" {
			removed = append(removed, e)
		}
	}
	require.Len(t, removed, 2)
	assert.Equal(t, "rev-1", removed[1].Revision)

	require.Len(t, result.Final.Cells, 1)
	st := result.Final.CellStates[result.Final.Cells[0].ID]
	assert.Equal(t, ir.StateRejected, st.Variable.Kind)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "expectations that do not hold",
		Steps: []Step{{
			Document: "1 + 1",
			Expect: []CellExpect{
				{Cell: "1 + 1", Displays: []any{3}},
				{Cell: "2 + 2"},
			},
		}},
		Assertions: []Assertion{{Type: AssertRevisionCount, Count: 2}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "displays: expected [3], got [2]")
	assert.Contains(t, result.Errors[1], `cell "2 + 2": not found`)
	assert.Contains(t, result.Errors[2], "revision_count")
}

func TestRun_RevisionPrefix(t *testing.T) {
	s := &Scenario{
		Name:           "prefix",
		Description:    "custom revision tokens",
		RevisionPrefix: "doc",
		Steps:          []Step{{Document: "1"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Revisions, 1)
	assert.Equal(t, "doc-1", result.Revisions[0].ID)
	assert.Equal(t, "doc-1", result.Final.Revision)
}

func TestNotebookConfig(t *testing.T) {
	cfg := notebookConfig(nil)
	assert.Equal(t, "///", cfg.IgnorePrefix)
	assert.Equal(t, "//", cfg.CommentPrefix)

	cfg = notebookConfig(&ScenarioConfig{
		IgnorePrefix:  "%%",
		CommentPrefix: "#",
		Builtins:      map[string]any{"width": 1},
		Modules:       map[string]map[string]any{"m": {"x": 1}},
	})
	assert.Equal(t, "%%", cfg.IgnorePrefix)
	assert.Equal(t, "#", cfg.CommentPrefix)
	assert.Equal(t, map[string]any{"width": 1}, cfg.Builtins)
	assert.Equal(t, map[string]any{"x": 1}, cfg.Modules["m"])
}

// Every scenario run is reproducible: a golden file written from one run
// matches the next.
func TestGolden_Deterministic(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)

	dir := t.TempDir()
	for _, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err)

		t.Run(s.Name, func(t *testing.T) {
			first, err := Run(s)
			require.NoError(t, err)
			data, err := GoldenBytes(s.Name, first)
			require.NoError(t, err)

			g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
			require.NoError(t, g.Update(t, s.Name, data))

			_, err = RunWithGolden(t, s, goldie.WithFixtureDir(dir))
			require.NoError(t, err)
		})
	}
}

func TestGoldenBytes(t *testing.T) {
	result := NewResult()
	result.Console = "<b>\n"
	result.Trace = []TraceEvent{{Revision: "rev-1", CellID: "c1", Cell: "1", Kind: ir.KindCode, State: ir.StateFulfilled, Value: 1.0}}

	data, err := GoldenBytes("sample", result)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"scenario_name": "sample"`)
	assert.Contains(t, text, `"console": "<b>\n"`)
	assert.Contains(t, text, `"cell_id": "c1"`)
	assert.True(t, strings.HasSuffix(text, "}\n"))
}
