package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/compiler"
	"github.com/roach88/dirsync/internal/engine"
	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/source"
	"github.com/roach88/dirsync/internal/store"
	"github.com/roach88/dirsync/internal/syncrule"
	"github.com/roach88/dirsync/internal/testutil"
)

// DefaultActor is the author recorded when a scenario names none.
const DefaultActor = "scenario"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and a fixed run id.
type Harness struct {
	store  *store.Store
	log    *activity.Log
	engine *engine.Engine
	bundle *compiler.Bundle
	plans  map[string]*syncrule.Plan
	actor  string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the rules directory
// 3. Execute run steps in order, checking each expect clause
// 4. Collect the activity log as the trace
// 5. Evaluate assertions and return the result
//
// An error is returned only when the scenario cannot be executed at all.
// Failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	bundle, loadErrs := compiler.LoadDir(scenario.Rules, compiler.LoadModeFailFast)
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("failed to load rules: %w", errors.Join(loadErrs...))
	}
	plans, planErrs := compiler.Plans(bundle)
	if len(planErrs) > 0 {
		errs := make([]error, len(planErrs))
		for i, e := range planErrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid rules: %w", errors.Join(errs...))
	}

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := activity.New(st,
		activity.WithClock(testutil.NewDeterministicClock()),
		activity.WithLogger(logger),
	)

	h := &Harness{
		store: st,
		log:   log,
		engine: engine.New(st, log,
			engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
			engine.WithLogger(logger),
		),
		bundle: bundle,
		plans:  plans,
		actor:  scenario.Actor,
	}
	if h.actor == "" {
		h.actor = DefaultActor
	}

	result := NewResult()
	for i, step := range scenario.Runs {
		if err := h.executeRun(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	entries, err := st.Entries(ctx, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}
	for _, e := range entries {
		result.AddEntryTrace(e)
	}

	actx := &AssertionContext{
		Store: st,
		Log:   log,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeRun runs one step and checks its expect clause.
// Run failures are expectations like any other; only setup problems
// (an unknown rule or source, malformed rows) are returned.
func (h *Harness) executeRun(ctx context.Context, index int, step RunStep, result *Result) error {
	plan, ok := h.plans[step.Rule]
	if !ok {
		return fmt.Errorf("runs[%d]: unknown rule %q", index, step.Rule)
	}

	sources, err := h.openSources(plan.Rule, step.Rows)
	if err != nil {
		return fmt.Errorf("runs[%d]: %w", index, err)
	}
	defer func() {
		for _, src := range sources {
			if c, ok := src.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}()

	in := engine.RunInput{
		Plan:    plan,
		Sources: sources,
		Actor:   h.actor,
		DryRun:  step.DryRun,
	}
	// An empty catalogue would reject every template, so keep nil.
	if len(h.bundle.Templates) > 0 {
		in.Templates = h.bundle.Templates
	}

	sum, runErr := h.engine.Run(ctx, in)
	if sum == nil {
		sum = &engine.Summary{Rule: step.Rule}
	}
	result.Summaries = append(result.Summaries, sum)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, sum, runErr) {
			result.AddError(fmt.Sprintf("runs[%d] (%s): %s", index, step.Rule, msg))
		}
	} else if runErr != nil {
		result.AddError(fmt.Sprintf("runs[%d] (%s): unexpected run failure: %v", index, step.Rule, runErr))
	}
	return nil
}

// openSources opens the sources the rule reads from. Sources named in
// overrides are replaced by static sources holding the given rows.
func (h *Harness) openSources(rule syncrule.SyncRule, overrides map[string][]map[string]any) (map[int64]source.ImportSource, error) {
	for name := range overrides {
		if _, ok := h.bundle.Source(name); !ok {
			return nil, fmt.Errorf("rows for unknown source %q", name)
		}
	}

	out := make(map[int64]source.ImportSource)
	for _, id := range rule.ListInvolvedSourceIDs() {
		def, ok := h.bundle.SourceByID(id)
		if !ok {
			return nil, fmt.Errorf("rule %q: no source with id %d", rule.Name, id)
		}
		if raw, ok := overrides[def.Name]; ok {
			rows, err := convertRows(raw)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", def.Name, err)
			}
			def.Kind = source.KindStatic
			def.Rows = rows
		}
		src, err := source.Open(def)
		if err != nil {
			return nil, err
		}
		out[id] = src
	}
	return out, nil
}

// convertRows converts YAML-decoded rows to property dicts.
func convertRows(raw []map[string]any) ([]props.Dict, error) {
	rows := make([]props.Dict, len(raw))
	for i, r := range raw {
		v, err := props.FromAny(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = v.(props.Dict)
	}
	return rows, nil
}

// checkExpect compares a run outcome with its expect clause.
func checkExpect(want *ExpectClause, sum *engine.Summary, runErr error) []string {
	var msgs []string

	if want.Aborted {
		if runErr == nil {
			return []string{"expected run to abort, but it succeeded"}
		}
		if !errors.Is(runErr, engine.ErrRunAborted) {
			msgs = append(msgs, fmt.Sprintf("expected aborted run, got error: %v", runErr))
		}
	} else if runErr != nil {
		return []string{fmt.Sprintf("unexpected run failure: %v", runErr)}
	}

	counters := []struct {
		name string
		want *int
		got  int
	}{
		{"created", want.Created, sum.Created},
		{"modified", want.Modified, sum.Modified},
		{"deleted", want.Deleted, sum.Deleted},
		{"unchanged", want.Unchanged, sum.Unchanged},
	}
	for _, c := range counters {
		if c.want != nil && *c.want != c.got {
			msgs = append(msgs, fmt.Sprintf("%s: expected %d, got %d", c.name, *c.want, c.got))
		}
	}

	codes := make([]string, len(sum.Errors))
	for i, e := range sum.Errors {
		codes[i] = string(e.Code)
	}
	if !slices.Equal(codes, want.Errors) {
		msgs = append(msgs, fmt.Sprintf("errors: expected %v, got %v", want.Errors, codes))
	}

	if want.PurgeSkipped != sum.PurgeSkipped {
		msgs = append(msgs, fmt.Sprintf("purge_skipped: expected %t, got %t", want.PurgeSkipped, sum.PurgeSkipped))
	}

	return msgs
}
