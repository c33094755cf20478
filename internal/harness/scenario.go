package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a sync conformance scenario.
// A scenario runs sync rules over fixed rows, one run after the other
// against the same database, and asserts on the activity log the runs wrote
// and the objects they left behind.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the rules directory to load.
	// Relative paths are resolved against the scenario file location.
	Rules string `yaml:"rules"`

	// Actor is recorded as the author of every entry. Defaults to "scenario".
	Actor string `yaml:"actor,omitempty"`

	// RunID is the fixed sync run id for deterministic tests.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Runs are executed in order.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, absent, chain_valid
	Assertions []Assertion `yaml:"assertions"`
}

// RunStep is one sync run.
type RunStep struct {
	// Rule is the name of the rule to run.
	Rule string `yaml:"rule"`

	// Rows replaces the rows of the named sources for this run.
	// Sources not listed keep their configured rows.
	Rows map[string][]map[string]any `yaml:"rows,omitempty"`

	// DryRun computes the run without writing.
	DryRun bool `yaml:"dry_run,omitempty"`

	// Expect specifies the expected run summary.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a run.
// Only the counters that are set are compared.
type ExpectClause struct {
	Created   *int `yaml:"created,omitempty"`
	Modified  *int `yaml:"modified,omitempty"`
	Deleted   *int `yaml:"deleted,omitempty"`
	Unchanged *int `yaml:"unchanged,omitempty"`

	// Errors lists the expected row error codes, in order.
	Errors []string `yaml:"errors,omitempty"`

	// PurgeSkipped expects the purge to have been skipped.
	PurgeSkipped bool `yaml:"purge_skipped,omitempty"`

	// Aborted expects the run to fail as a whole.
	Aborted bool `yaml:"aborted,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an entry with action and object exists
	// - "trace_order": Check objects first appear in order
	// - "trace_count": Check the number of entries with an action
	// - "final_state": Check the stored properties of an object
	// - "absent": Check an object is not stored
	// - "chain_valid": Check the activity chain verifies
	Type string `yaml:"type"`

	// Action is create, modify or delete (trace_contains, trace_count).
	// Empty matches any action.
	Action string `yaml:"action,omitempty"`

	// ObjectType and Object identify an object.
	ObjectType string `yaml:"object_type,omitempty"`
	Object     string `yaml:"object,omitempty"`

	// Expect contains expected property values (used by final_state).
	// Subset match - only specified properties are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of entries (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Objects is the expected order of first appearance (used by trace_order).
	Objects []string `yaml:"objects,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertAbsent        = "absent"
	AssertChainValid    = "chain_valid"
)

// LoadScenario reads and parses a scenario YAML file.
// The rules path is resolved against the directory of path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the rules path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Rules == "" {
		return fmt.Errorf("rules directory is required")
	}
	if info, err := os.Stat(s.Rules); err != nil || !info.IsDir() {
		return fmt.Errorf("rules directory not found: %s", s.Rules)
	}

	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Runs {
		if step.Rule == "" {
			return fmt.Errorf("runs[%d]: rule is required", i)
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

	switch a.Action {
	case "", "create", "modify", "delete":
	default:
		return fmt.Errorf("assertions[%d]: unknown action %q", index, a.Action)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Objects) == 0 {
			return fmt.Errorf("assertions[%d]: objects list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.ObjectType == "" || a.Object == "" {
			return fmt.Errorf("assertions[%d]: object_type and object are required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertAbsent:
		if a.ObjectType == "" || a.Object == "" {
			return fmt.Errorf("assertions[%d]: object_type and object are required for absent", index)
		}
	case AssertChainValid:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
