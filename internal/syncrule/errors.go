package syncrule

import (
	"errors"
	"fmt"
)

// Error is a sync rule configuration or evaluation failure.
//
// Configuration-time codes (INVALID_FILTER_EXPRESSION, INVALID_DESTINATION)
// block rule activation. UNRESOLVED_TEMPLATE_CHOICE is raised per row and
// collected into the run summary. SOURCE_FETCH_FAILURE aborts a run before
// anything is written.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the sync rule, when known.
	RuleID int64

	// PropertyID identifies the sync property, when known.
	PropertyID int64

	// Field is the destination field involved, when known.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes sync rule errors.
type ErrorCode string

const (
	// ErrCodeUnresolvedTemplateChoice indicates a bulk import resolved to no template.
	ErrCodeUnresolvedTemplateChoice ErrorCode = "UNRESOLVED_TEMPLATE_CHOICE"

	// ErrCodeInvalidFilter indicates a malformed filter expression.
	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER_EXPRESSION"

	// ErrCodeInvalidDestination indicates a destination the object type cannot take.
	ErrCodeInvalidDestination ErrorCode = "INVALID_DESTINATION"

	// ErrCodeSourceFetchFailure indicates an import source could not produce data.
	ErrCodeSourceFetchFailure ErrorCode = "SOURCE_FETCH_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsUnresolvedTemplateChoice reports whether err is an unresolved bulk import.
// Uses errors.As to handle wrapped errors.
func IsUnresolvedTemplateChoice(err error) bool {
	return hasCode(err, ErrCodeUnresolvedTemplateChoice)
}

// IsInvalidFilter reports whether err is a malformed filter expression.
func IsInvalidFilter(err error) bool { return hasCode(err, ErrCodeInvalidFilter) }

// IsInvalidDestination reports whether err is a rejected destination field.
func IsInvalidDestination(err error) bool { return hasCode(err, ErrCodeInvalidDestination) }

// IsSourceFetchFailure reports whether err is an import source failure.
func IsSourceFetchFailure(err error) bool { return hasCode(err, ErrCodeSourceFetchFailure) }

// NewUnresolvedTemplateChoice creates an Error for a bulk import with no candidate.
func NewUnresolvedTemplateChoice(p SyncProperty, objectName string) *Error {
	return &Error{
		Code:       ErrCodeUnresolvedTemplateChoice,
		Message:    fmt.Sprintf("no template to import for %q", objectName),
		RuleID:     p.RuleID,
		PropertyID: p.ID,
		Field:      p.DestinationField,
	}
}

// NewInvalidFilter creates an Error wrapping a filter syntax error.
func NewInvalidFilter(p SyncProperty, cause error) *Error {
	return &Error{
		Code:       ErrCodeInvalidFilter,
		Message:    "invalid filter expression",
		RuleID:     p.RuleID,
		PropertyID: p.ID,
		Field:      p.DestinationField,
		Err:        cause,
	}
}

// NewInvalidDestination creates an Error for an unusable destination field.
func NewInvalidDestination(p SyncProperty, format string, args ...any) *Error {
	return &Error{
		Code:       ErrCodeInvalidDestination,
		Message:    fmt.Sprintf(format, args...),
		RuleID:     p.RuleID,
		PropertyID: p.ID,
		Field:      p.DestinationField,
	}
}

// NewSourceFetchFailure creates an Error for an import source that failed.
func NewSourceFetchFailure(sourceName string, cause error) *Error {
	return &Error{
		Code:    ErrCodeSourceFetchFailure,
		Message: fmt.Sprintf("failed to fetch import source %q", sourceName),
		Err:     cause,
	}
}
