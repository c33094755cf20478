package harness

import (
	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/engine"
)

// TraceEvent is one activity log entry written during a scenario.
type TraceEvent struct {
	ID         int64           `json:"id"`
	Action     activity.Action `json:"action"`
	ObjectType string          `json:"object_type"`
	ObjectName string          `json:"object_name"`
	Author     string          `json:"author"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every entry of the activity log, in id order.
	Trace []TraceEvent `json:"trace"`

	// Summaries holds one summary per run step.
	Summaries []*engine.Summary `json:"summaries"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEntryTrace adds a log entry to the trace.
func (r *Result) AddEntryTrace(e activity.Entry) {
	r.Trace = append(r.Trace, TraceEvent{
		ID:         e.ID,
		Action:     e.ActionName,
		ObjectType: e.ObjectType,
		ObjectName: e.ObjectName,
		Author:     e.Author,
	})
}
