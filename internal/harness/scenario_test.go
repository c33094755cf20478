package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content as test.yaml next to an empty rules
// directory and returns the scenario path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rules"), 0755))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalScenario = `
name: test_scenario
description: "Test scenario for validation"
rules: rules
runs:
  - rule: hosts
assertions:
  - type: chain_valid
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
rules: rules
run_id: run-7
actor: nightly
runs:
  - rule: hosts
    rows:
      cmdb:
        - {hostname: www1, ip: 10.0.0.1, port: 22, managed: true}
    expect:
      created: 1
      unchanged: 0
      errors: [MISSING_KEY]
assertions:
  - type: trace_contains
    action: create
    object: www1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "rules"), scenario.Rules)
	assert.Equal(t, "run-7", scenario.RunID)
	assert.Equal(t, "nightly", scenario.Actor)
	require.Len(t, scenario.Runs, 1)

	step := scenario.Runs[0]
	assert.Equal(t, "hosts", step.Rule)
	require.Len(t, step.Rows["cmdb"], 1)
	assert.Equal(t, "www1", step.Rows["cmdb"][0]["hostname"])
	assert.Equal(t, 22, step.Rows["cmdb"][0]["port"])
	assert.Equal(t, true, step.Rows["cmdb"][0]["managed"])

	require.NotNil(t, step.Expect)
	require.NotNil(t, step.Expect.Created)
	assert.Equal(t, 1, *step.Expect.Created)
	require.NotNil(t, step.Expect.Unchanged)
	assert.Zero(t, *step.Expect.Unchanged)
	assert.Nil(t, step.Expect.Modified)
	assert.Equal(t, []string{"MISSING_KEY"}, step.Expect.Errors)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unclosed\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "Missing name"
rules: rules
runs: [{rule: hosts}]
assertions: [{type: chain_valid}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: test
rules: rules
runs: [{rule: hosts}]
assertions: [{type: chain_valid}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing rules",
			content: `
name: test
description: "Test"
runs: [{rule: hosts}]
assertions: [{type: chain_valid}]
`,
			wantErr: "rules directory is required",
		},
		{
			name: "rules not a directory",
			content: `
name: test
description: "Test"
rules: /nonexistent/rules
runs: [{rule: hosts}]
assertions: [{type: chain_valid}]
`,
			wantErr: "rules directory not found",
		},
		{
			name: "empty runs",
			content: `
name: test
description: "Test"
rules: rules
runs: []
assertions: [{type: chain_valid}]
`,
			wantErr: "runs list is required",
		},
		{
			name: "empty assertions",
			content: `
name: test
description: "Test"
rules: rules
runs: [{rule: hosts}]
assertions: []
`,
			wantErr: "assertions list is required",
		},
		{
			name: "run without rule",
			content: `
name: test
description: "Test"
rules: rules
runs: [{dry_run: true}]
assertions: [{type: chain_valid}]
`,
			wantErr: "runs[0]: rule is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{"trace_contains valid", "{type: trace_contains, action: create, object: www1}", ""},
		{"trace_contains missing object", "{type: trace_contains, action: create}", "object is required for trace_contains"},
		{"trace_order valid", "{type: trace_order, objects: [www1, www2]}", ""},
		{"trace_order missing objects", "{type: trace_order}", "objects list is required for trace_order"},
		{"trace_count zero allowed", "{type: trace_count, action: delete, count: 0}", ""},
		{"trace_count negative", "{type: trace_count, count: -1}", "count must be non-negative"},
		{"final_state valid", "{type: final_state, object_type: host, object: www1, expect: {address: 10.0.0.1}}", ""},
		{"final_state missing object", "{type: final_state, object_type: host, expect: {address: x}}", "object_type and object are required for final_state"},
		{"final_state missing expect", "{type: final_state, object_type: host, object: www1}", "expect is required for final_state"},
		{"absent valid", "{type: absent, object_type: host, object: www1}", ""},
		{"absent missing type", "{type: absent, object: www1}", "object_type and object are required for absent"},
		{"chain_valid", "{type: chain_valid}", ""},
		{"missing type", "{object: www1}", "assertions[0]: type is required"},
		{"unknown type", "{type: trace_magic}", `unknown assertion type "trace_magic"`},
		{"unknown action", "{type: trace_count, action: rename}", `unknown action "rename"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
name: test
description: "Test"
rules: rules
runs: [{rule: hosts}]
assertions:
  - ` + tt.assertion + "\n"

			scenario, err := LoadScenario(writeScenario(t, content))
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.Len(t, scenario.Assertions, 1)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"top level typo", minimalScenario + "assertion: []\n"},
		{"run typo", `
name: test
description: "Test"
rules: rules
runs:
  - rule: hosts
    dryrun: true
assertions: [{type: chain_valid}]
`},
		{"expect typo", `
name: test
description: "Test"
rules: rules
runs:
  - rule: hosts
    expect: {creatd: 1}
assertions: [{type: chain_valid}]
`},
		{"assertion typo", `
name: test
description: "Test"
rules: rules
runs: [{rule: hosts}]
assertions: [{type: absent, object_typ: host, object: www1}]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to parse YAML")
		})
	}
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	path := writeScenario(t, minimalScenario)
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "rules"), 0755))

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "rules"), scenario.Rules)
}

func TestLoadScenarioWithBasePath_AbsoluteRulesPath(t *testing.T) {
	rulesDir := t.TempDir()
	path := writeScenario(t, `
name: test
description: "Test"
rules: `+rulesDir+`
runs: [{rule: hosts}]
assertions: [{type: chain_valid}]
`)

	scenario, err := LoadScenarioWithBasePath(path, "/somewhere/else")
	require.NoError(t, err)
	assert.Equal(t, rulesDir, scenario.Rules)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "trace_contains", AssertTraceContains)
	assert.Equal(t, "trace_order", AssertTraceOrder)
	assert.Equal(t, "trace_count", AssertTraceCount)
	assert.Equal(t, "final_state", AssertFinalState)
	assert.Equal(t, "absent", AssertAbsent)
	assert.Equal(t, "chain_valid", AssertChainValid)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Runs)
		})
	}
}
