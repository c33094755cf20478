package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/engine"
	"github.com/roach88/dirsync/internal/props"
)

func TestRunWithGolden_HostLifecycle(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/host_lifecycle.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_HostLifecycle -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "tiny",
		Runs: []*engine.Summary{{
			RunID: "r", Rule: "hosts", Rows: 1, Created: 1,
			Errors: []*engine.RowError{{Code: engine.ErrCodeUnresolvedTemplate}},
		}},
		Trace: []TraceEvent{{ID: 1, Action: activity.ActionCreate, ObjectType: "host", ObjectName: "www1", Author: "cli"}},
	}

	data, err := props.MarshalCanonical(snapshot.toCanonical())
	require.NoError(t, err)
	assert.Equal(t,
		`{"runs":[{"created":1,"deleted":0,"dry_run":false,"errors":["UNRESOLVED_TEMPLATE_CHOICE"],"modified":0,"purge_skipped":false,"rows":1,"rule":"hosts","run_id":"r","unchanged":0}],`+
			`"scenario_name":"tiny",`+
			`"trace":[{"action":"create","author":"cli","id":1,"object_name":"www1","object_type":"host"}]}`,
		string(data))
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/duplicate_names.yaml")
	require.NoError(t, err)

	var outputs []string
	for range 3 {
		result, err := Run(scenario)
		require.NoError(t, err)
		snapshot := TraceSnapshot{ScenarioName: scenario.Name, Runs: result.Summaries, Trace: result.Trace}
		data, err := props.MarshalCanonical(snapshot.toCanonical())
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}

	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}
