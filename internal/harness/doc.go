// Package harness provides scenario testing for sync rules.
//
// A scenario loads a rules directory, executes one or more sync runs against
// a fresh in-memory database, and validates what the runs wrote to the
// activity log and the object store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules: ../rules/hosts
//	run_id: lifecycle-run
//	actor: nightly
//	runs:
//	  - rule: hosts
//	    expect:
//	      created: 2
//	  - rule: hosts
//	    rows:
//	      cmdb:
//	        - {hostname: www1, ip: 10.0.0.9}
//	    expect:
//	      modified: 1
//	      deleted: 1
//	assertions:
//	  - type: trace_contains
//	    action: delete
//	    object: www2
//	  - type: final_state
//	    object_type: host
//	    object: www1
//	    expect: { address: 10.0.0.9 }
//
// Rows under a run replace the rows of the named source for that run only,
// so one rules directory can drive a whole lifecycle.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an entry exists for an object, optionally with an action
//   - trace_order: Verifies objects first appear in the specified order
//   - trace_count: Verifies the number of entries matching action and object
//   - final_state: Verifies stored properties of an object (subset match)
//   - absent: Verifies an object is not stored
//   - chain_valid: Verifies the checksum chain of the whole activity log
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed run id (from scenario.run_id, or "test-run-default")
//   - A deterministic clock (testutil.DeterministicClock)
//   - An in-memory SQLite database (isolated per scenario)
//
// Identical scenarios produce identical traces, which RunWithGolden compares
// against snapshots under testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/host_lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
