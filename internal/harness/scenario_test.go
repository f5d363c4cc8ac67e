package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	data := []byte(`
name: basic
description: A basic scenario
revision_prefix: doc
config:
  builtins:
    width: 640
steps:
  - document: "1 + 1"
    expect:
      - cell: "1 + 1"
        state: fulfilled
        displays: [2]
assertions:
  - type: revision_count
    count: 1
`)
	s, err := ParseScenario(data)
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, "doc", s.RevisionPrefix)
	require.NotNil(t, s.Config)
	assert.Equal(t, 640, s.Config.Builtins["width"])
	require.Len(t, s.Steps, 1)
	require.Len(t, s.Steps[0].Expect, 1)
	assert.Equal(t, "fulfilled", s.Steps[0].Expect[0].State)
	assert.Equal(t, []any{2}, s.Steps[0].Expect[0].Displays)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertRevisionCount, s.Assertions[0].Type)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\n    expects: []\n",
			wantErr: "field expects not found",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:\n  - document: a\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps:\n  - document: a\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "expect without cell",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\n    expect:\n      - state: fulfilled\n",
			wantErr: "steps[0].expect[0]: cell is required",
		},
		{
			name:    "unknown state",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\n    expect:\n      - cell: a\n        state: done\n",
			wantErr: `unknown state "done"`,
		},
		{
			name:    "assertion without type",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - cell: a\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - type: eventually\n",
			wantErr: `unknown assertion type "eventually"`,
		},
		{
			name:    "contains without cell",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - type: transition_contains\n    state: fulfilled\n",
			wantErr: "cell is required for transition_contains",
		},
		{
			name:    "contains with markdown state",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - type: transition_contains\n    cell: a\n    state: markdown\n",
			wantErr: "state must be pending, fulfilled or rejected",
		},
		{
			name:    "order without states",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - type: transition_order\n    cell: a\n",
			wantErr: "states list is required",
		},
		{
			name:    "negative count",
			yaml:    "name: x\ndescription: d\nsteps:\n  - document: a\nassertions:\n  - type: revision_count\n    count: -1\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"alpha.yaml", "beta.yml", "gamma.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "delta.yaml"), []byte("x"), 0o644))

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"all", "", []string{"alpha.yaml", "beta.yml", "gamma.yaml", "nested/delta.yaml"}},
		{"exact", "beta", []string{"beta.yml"}},
		{"glob", "*a", []string{"alpha.yaml", "beta.yml", "gamma.yaml", "nested/delta.yaml"}},
		{"prefix", "g*", []string{"gamma.yaml"}},
		{"none", "zeta", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := FindScenarioFiles(dir, tt.filter)
			require.NoError(t, err)

			var got []string
			for _, f := range files {
				rel, err := filepath.Rel(dir, f)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FindScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestScenarioFiles_AllParse(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	names := make(map[string]string)
	for _, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err, f)
		if prev, dup := names[s.Name]; dup {
			t.Errorf("scenario name %q used by %s and %s", s.Name, prev, f)
		}
		names[s.Name] = f
	}
}
