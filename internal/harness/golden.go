package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dirsync/internal/engine"
	"github.com/roach88/dirsync/internal/props"
)

// TraceSnapshot captures what a scenario wrote, without checksums or
// timestamps, so snapshots stay readable and stable.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Runs         []*engine.Summary `json:"runs"`
	Trace        []TraceEvent      `json:"trace"`
}

// toCanonical converts a TraceSnapshot to a props.Dict for canonical JSON
// serialization.
func (s *TraceSnapshot) toCanonical() props.Dict {
	runs := make(props.List, len(s.Runs))
	for i, sum := range s.Runs {
		codes := make(props.List, len(sum.Errors))
		for j, e := range sum.Errors {
			codes[j] = props.String(e.Code)
		}
		runs[i] = props.Dict{
			"rule":          props.String(sum.Rule),
			"run_id":        props.String(sum.RunID),
			"dry_run":       props.Bool(sum.DryRun),
			"rows":          props.Int(sum.Rows),
			"created":       props.Int(sum.Created),
			"modified":      props.Int(sum.Modified),
			"deleted":       props.Int(sum.Deleted),
			"unchanged":     props.Int(sum.Unchanged),
			"purge_skipped": props.Bool(sum.PurgeSkipped),
			"errors":        codes,
		}
	}

	trace := make(props.List, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = props.Dict{
			"id":          props.Int(event.ID),
			"action":      props.String(event.Action),
			"object_type": props.String(event.ObjectType),
			"object_name": props.String(event.ObjectName),
			"author":      props.String(event.Author),
		}
	}

	return props.Dict{
		"scenario_name": props.String(s.ScenarioName),
		"runs":          runs,
		"trace":         trace,
	}
}

// Snapshot returns the canonical JSON form of a result's trace snapshot.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Runs:         result.Summaries,
		Trace:        result.Trace,
	}
	return props.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
