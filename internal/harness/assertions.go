package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/props"
	"github.com/roach88/dirsync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.ID, event.Action, event.ObjectType, event.ObjectName)
		}
	}

	return buf.String()
}

// matchEvent reports whether event is for the asserted object and action.
// An empty action or object type in the assertion matches any.
func matchEvent(event TraceEvent, assertion Assertion) bool {
	if assertion.Action != "" && string(event.Action) != assertion.Action {
		return false
	}
	if assertion.ObjectType != "" && event.ObjectType != assertion.ObjectType {
		return false
	}
	return assertion.Object == "" || event.ObjectName == assertion.Object
}

func describe(assertion Assertion) string {
	parts := []string{}
	if assertion.Action != "" {
		parts = append(parts, assertion.Action)
	} else {
		parts = append(parts, "any action")
	}
	if assertion.ObjectType != "" {
		parts = append(parts, assertion.ObjectType)
	}
	if assertion.Object != "" {
		parts = append(parts, assertion.Object)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks the trace holds an entry for the object.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks objects first appear in the specified order.
// Entries don't need to be consecutive (intervening entries are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected object
	positions := make(map[string]int)
	for i, event := range trace {
		if assertion.ObjectType != "" && event.ObjectType != assertion.ObjectType {
			continue
		}
		if positions[event.ObjectName] == 0 {
			positions[event.ObjectName] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all objects found
	for _, name := range assertion.Objects {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all objects present: %v", assertion.Objects),
				Actual:   fmt.Sprintf("missing object: %s", name),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Objects); i++ {
		prev := assertion.Objects[i-1]
		curr := assertion.Objects[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("objects in order: %v", assertion.Objects),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the number of matching entries.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchEvent(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d entries for %s", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d entries", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the stored object holds the expected properties.
// Subset semantics: properties not named in Expect are ignored.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	stored, err := st.GetObject(ctx, assertion.ObjectType, assertion.Object)
	if errors.Is(err, store.ErrObjectNotFound) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s to exist", assertion.ObjectType, assertion.Object),
			Actual:   "object not found",
		}
	}
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	v, err := props.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: expect: %w", err)
	}
	want := v.(props.Dict)

	for _, key := range want.SortedKeys() {
		actual, exists := stored[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q to exist", key),
				Actual:   fmt.Sprintf("properties present: %v", stored.SortedKeys()),
			}
		}
		if !props.Equal(want[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q = %s", key, canonicalText(want[key])),
				Actual:   fmt.Sprintf("property %q = %s", key, canonicalText(actual)),
			}
		}
	}

	return nil
}

// assertAbsent checks the object is not stored.
func assertAbsent(ctx context.Context, st *store.Store, assertion Assertion) error {
	_, err := st.GetObject(ctx, assertion.ObjectType, assertion.Object)
	switch {
	case errors.Is(err, store.ErrObjectNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("absent: %w", err)
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Expected: fmt.Sprintf("%s %s not to exist", assertion.ObjectType, assertion.Object),
		Actual:   "object is stored",
	}
}

// assertChainValid verifies the whole activity chain.
func assertChainValid(ctx context.Context, log *activity.Log, trace []TraceEvent) error {
	err := log.VerifyChain(ctx, 1, 0)
	var chainErr *activity.ChainIntegrityError
	if errors.As(err, &chainErr) {
		return &AssertionError{
			Type:     AssertChainValid,
			Expected: "activity chain verifies",
			Actual:   chainErr.Error(),
			Trace:    trace,
		}
	}
	return err
}

func canonicalText(v props.Value) string {
	data, err := props.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Log   *activity.Log
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state, absent and
// chain_valid assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertAbsent:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertAbsent(actx.Ctx, actx.Store, assertion)
			}
		case AssertChainValid:
			if actx == nil || actx.Log == nil {
				err = fmt.Errorf("assertion[%d]: chain_valid requires the activity log", i)
			} else {
				err = assertChainValid(actx.Ctx, actx.Log, result.Trace)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
