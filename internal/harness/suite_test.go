package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite_Examples(t *testing.T) {
	result, err := RunSuite("testdata/scenarios")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 2, result.Passed, "failures: %v", result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	rules, err := filepath.Abs(hostsRules)
	require.NoError(t, err)

	files := map[string]string{
		"a_broken.yaml": "name: [unclosed\n",
		"b_failing.yaml": `
name: failing
description: "Counts that do not match"
rules: ` + rules + `
runs:
  - rule: hosts
    expect: {created: 5}
assertions: [{type: chain_valid}]
`,
		"c_passing.yml": `
name: passing
description: "Plain import"
rules: ` + rules + `
runs:
  - rule: hosts
    expect: {created: 2}
assertions: [{type: chain_valid}]
`,
		"notes.txt": "not a scenario",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	result, err := RunSuite(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)

	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "created: expected 5, got 2")
}

func TestRunSuite_MissingDir(t *testing.T) {
	_, err := RunSuite("/nonexistent/scenarios")
	require.Error(t, err)
}

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata/scenarios", "duplicate_names.yaml"),
		filepath.Join("testdata/scenarios", "host_lifecycle.yaml"),
	}, paths)
}
