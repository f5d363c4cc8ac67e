package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/noticeable/internal/ir"
)

// Scenario defines a notebook conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the default notebook configuration.
	Config *ScenarioConfig `yaml:"config,omitempty"`

	// Steps are the documents set in order. Each step settles before its
	// expectations are checked.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded journal after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RevisionPrefix prefixes the sequential revision tokens.
	// If empty, tokens are "rev-1", "rev-2", ...
	RevisionPrefix string `yaml:"revision_prefix,omitempty"`
}

// ScenarioConfig holds notebook configuration overrides.
type ScenarioConfig struct {
	IgnorePrefix  string                    `yaml:"ignore_prefix,omitempty"`
	CommentPrefix string                    `yaml:"comment_prefix,omitempty"`
	Builtins      map[string]any            `yaml:"builtins,omitempty"`
	Modules       map[string]map[string]any `yaml:"modules,omitempty"`
}

// Step sets one document.
type Step struct {
	// Document is the full notebook text. May be empty.
	Document string `yaml:"document"`

	// Expect checks cell states once the step settles.
	Expect []CellExpect `yaml:"expect,omitempty"`

	// Console, if set, must appear in the console output so far.
	Console string `yaml:"console,omitempty"`
}

// CellExpect is a subset match on one cell's settled state. Only fields
// that are set are checked.
type CellExpect struct {
	// Cell is the cell's code. Surrounding whitespace is ignored.
	Cell string `yaml:"cell"`

	// Absent expects no cell with this code.
	Absent bool `yaml:"absent,omitempty"`

	// State is pending, fulfilled, rejected or markdown.
	State string `yaml:"state,omitempty"`

	// Value is the main variable's fulfilled value.
	Value any `yaml:"value,omitempty"`

	// Displays are the displayed values in order.
	Displays []any `yaml:"displays,omitempty"`

	// Outputs are expected output values by name (subset).
	Outputs map[string]any `yaml:"outputs,omitempty"`

	// Error must be a substring of the rejection message.
	Error string `yaml:"error,omitempty"`

	// Line is the expected 1-based document line of a rejection.
	Line int `yaml:"line,omitempty"`

	// Markdown is the expected text of a markdown cell.
	Markdown string `yaml:"markdown,omitempty"`
}

// StateMarkdown is the expected state of a markdown cell.
const StateMarkdown = "markdown"

// Assertion validates the transition journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "transition_contains": Check a cell reached a state
	// - "transition_order": Check a cell passed through states in order
	// - "transition_count": Check matching transitions occur exactly N times
	// - "revision_count": Check the number of recorded revisions
	Type string `yaml:"type"`

	// Cell is the cell's code (used by transition_*). Optional for
	// transition_count, where empty matches every cell.
	Cell string `yaml:"cell,omitempty"`

	// State is the expected state (transition_contains, transition_count).
	State string `yaml:"state,omitempty"`

	// Value is the expected fulfilled value (transition_contains, optional).
	Value any `yaml:"value,omitempty"`

	// States is the expected state order (transition_order).
	States []string `yaml:"states,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTransitionContains = "transition_contains"
	AssertTransitionOrder    = "transition_order"
	AssertTransitionCount    = "transition_count"
	AssertRevisionCount      = "revision_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarioFiles returns the .yaml and .yml files under dir whose base
// name (without extension) matches filter. An empty filter matches all.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

var validStates = map[string]bool{
	string(ir.StatePending):   true,
	string(ir.StateFulfilled): true,
	string(ir.StateRejected):  true,
	StateMarkdown:             true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		for j, e := range step.Expect {
			if strings.TrimSpace(e.Cell) == "" {
				return fmt.Errorf("steps[%d].expect[%d]: cell is required", i, j)
			}
			if e.State != "" && !validStates[e.State] {
				return fmt.Errorf("steps[%d].expect[%d]: unknown state %q", i, j, e.State)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTransitionContains:
		if a.Cell == "" {
			return fmt.Errorf("assertions[%d]: cell is required for transition_contains", index)
		}
		if !validStates[a.State] || a.State == StateMarkdown {
			return fmt.Errorf("assertions[%d]: state must be pending, fulfilled or rejected for transition_contains", index)
		}
	case AssertTransitionOrder:
		if a.Cell == "" {
			return fmt.Errorf("assertions[%d]: cell is required for transition_order", index)
		}
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for transition_order", index)
		}
	case AssertTransitionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for transition_count", index)
		}
	case AssertRevisionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for revision_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
