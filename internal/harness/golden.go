package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/noticeable/internal/ir"
)

// GoldenSnapshot is what a golden file records for a scenario.
type GoldenSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Revisions    []ir.Revision `json:"revisions"`
	Trace        []TraceEvent  `json:"trace"`
	Final        ir.Snapshot   `json:"final"`
	Console      string        `json:"console,omitempty"`
}

// GoldenBytes renders a result as golden file content. Map keys are
// sorted, so the output is deterministic for a deterministic run.
func GoldenBytes(name string, result *Result) ([]byte, error) {
	snapshot := GoldenSnapshot{
		ScenarioName: name,
		Revisions:    result.Revisions,
		Trace:        result.Trace,
		Final:        result.Final,
		Console:      result.Console,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the result against a
// golden file, by default testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the result doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := GoldenBytes(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, data)

	return nil
}
